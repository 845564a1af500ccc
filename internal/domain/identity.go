package domain

// Identity holds the attributes fetched from the upstream provider with the
// exchanged access token. Login is the stable user id.
type Identity struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Label is the human-readable name shown for a grant, falling back to the login.
func (i Identity) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Login
}
