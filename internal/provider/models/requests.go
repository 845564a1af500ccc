package models

import (
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "mcpauth/pkg/domain-errors"
	pstrings "mcpauth/pkg/platform/strings"
)

const (
	maxRedirectURIs = 10
	maxURILength    = 2048
)

// TokenRequest is the form posted to /token.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
}

// Normalize trims whitespace around every field.
func (r *TokenRequest) Normalize() {
	r.GrantType = strings.TrimSpace(r.GrantType)
	r.Code = strings.TrimSpace(r.Code)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.CodeVerifier = strings.TrimSpace(r.CodeVerifier)
}

// Validate checks the fields every grant type needs.
func (r *TokenRequest) Validate() error {
	if r.GrantType == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "grant_type is required")
	}
	if r.GrantType != GrantTypeAuthorizationCode {
		return dErrors.New(dErrors.CodeUnsupportedGrantType, "unsupported grant_type")
	}
	if r.Code == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "code is required")
	}
	if r.ClientID == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "client_id is required")
	}
	return nil
}

// RegistrationRequest is the RFC 7591 client metadata document.
type RegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	PolicyURI               string   `json:"policy_uri,omitempty"`
	TosURI                  string   `json:"tos_uri,omitempty"`
	Contacts                []string `json:"contacts,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
}

// Normalize trims, dedupes and applies defaults.
func (r *RegistrationRequest) Normalize() {
	r.RedirectURIs = pstrings.DedupeAndTrim(r.RedirectURIs)
	r.Contacts = pstrings.DedupeAndTrim(r.Contacts)
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.ClientURI = strings.TrimSpace(r.ClientURI)
	r.LogoURI = strings.TrimSpace(r.LogoURI)
	r.PolicyURI = strings.TrimSpace(r.PolicyURI)
	r.TosURI = strings.TrimSpace(r.TosURI)
	r.TokenEndpointAuthMethod = strings.TrimSpace(r.TokenEndpointAuthMethod)
	if r.TokenEndpointAuthMethod == "" {
		r.TokenEndpointAuthMethod = AuthMethodSecretBasic
	}
	if len(r.GrantTypes) == 0 {
		r.GrantTypes = []string{GrantTypeAuthorizationCode}
	}
	if len(r.ResponseTypes) == 0 {
		r.ResponseTypes = []string{ResponseTypeCode}
	}
}

// Validate rejects metadata the registry will not store. Error codes follow
// RFC 7591 section 3.2.2.
func (r *RegistrationRequest) Validate() error {
	if len(r.RedirectURIs) == 0 {
		return dErrors.New(dErrors.CodeInvalidRedirectURI, "at least one redirect_uri is required")
	}
	if len(r.RedirectURIs) > maxRedirectURIs {
		return dErrors.New(dErrors.CodeInvalidRedirectURI, "too many redirect_uris")
	}
	for _, uri := range r.RedirectURIs {
		if !isRedirectURI(uri) {
			return dErrors.New(dErrors.CodeInvalidRedirectURI, "invalid redirect_uri: "+uri)
		}
	}
	if !govalidator.StringLength(r.ClientName, "0", "128") {
		return dErrors.New(dErrors.CodeInvalidClientMetadata, "client_name must be 128 characters or less")
	}
	for field, value := range map[string]string{
		"client_uri": r.ClientURI,
		"logo_uri":   r.LogoURI,
		"policy_uri": r.PolicyURI,
		"tos_uri":    r.TosURI,
	} {
		if value == "" {
			continue
		}
		if len(value) > maxURILength || !govalidator.IsURL(value) {
			return dErrors.New(dErrors.CodeInvalidClientMetadata, "invalid "+field)
		}
	}
	for _, contact := range r.Contacts {
		if !govalidator.StringLength(contact, "1", "254") {
			return dErrors.New(dErrors.CodeInvalidClientMetadata, "invalid contact")
		}
	}
	switch r.TokenEndpointAuthMethod {
	case AuthMethodNone, AuthMethodSecretPost, AuthMethodSecretBasic:
	default:
		return dErrors.New(dErrors.CodeInvalidClientMetadata, "unsupported token_endpoint_auth_method")
	}
	for _, gt := range r.GrantTypes {
		if gt != GrantTypeAuthorizationCode {
			return dErrors.New(dErrors.CodeInvalidClientMetadata, "unsupported grant_type: "+gt)
		}
	}
	for _, rt := range r.ResponseTypes {
		if rt != ResponseTypeCode {
			return dErrors.New(dErrors.CodeInvalidClientMetadata, "unsupported response_type: "+rt)
		}
	}
	return nil
}

// isRedirectURI accepts absolute URIs without a fragment. Native clients use
// private schemes, so only http(s) URIs go through the stricter host check.
func isRedirectURI(raw string) bool {
	if len(raw) > maxURILength || !govalidator.IsRequestURI(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Fragment != "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != "" && govalidator.IsURL(raw)
	case "javascript", "data", "vbscript":
		return false
	}
	return true
}
