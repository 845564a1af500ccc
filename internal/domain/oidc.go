package domain

// AuthRequest is the pending downstream authorization request. It is produced
// by the provider registry when an MCP client hits /authorize and travels
// through the consent form and the upstream redirect as opaque state. The
// broker only ever reads ClientID; everything else is interpreted by the
// provider when the grant is minted.
type AuthRequest struct {
	ResponseType        string   `json:"responseType"`
	ClientID            string   `json:"clientId"`
	RedirectURI         string   `json:"redirectUri"`
	Scope               []string `json:"scope"`
	State               string   `json:"state"`
	CodeChallenge       string   `json:"codeChallenge,omitempty"`
	CodeChallengeMethod string   `json:"codeChallengeMethod,omitempty"`
}

// ClientInfo is registration metadata supplied by an arbitrary third-party
// client. It is untrusted and used for display only.
type ClientInfo struct {
	ClientID     string   `json:"client_id"`
	ClientName   string   `json:"client_name,omitempty"`
	ClientURI    string   `json:"client_uri,omitempty"`
	LogoURI      string   `json:"logo_uri,omitempty"`
	PolicyURI    string   `json:"policy_uri,omitempty"`
	TosURI       string   `json:"tos_uri,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
	Contacts     []string `json:"contacts,omitempty"`
}

// Completion is handed to the token issuer once the upstream identity is known.
// AccessToken is the upstream credential; the broker drops it after the hand-off.
type Completion struct {
	Identity    Identity
	AccessToken string
	Request     AuthRequest
}
