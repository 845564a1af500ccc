// Package dialog renders the consent page shown before an MCP client is sent
// to the upstream identity provider.
//
// Client metadata is registered by arbitrary third parties, so every field is
// interpolated through html/template. URL attributes with unsafe schemes are
// replaced by the template engine.
package dialog

import (
	"bytes"
	_ "embed"
	"html/template"
	"io"
	"strings"

	"mcpauth/internal/domain"
)

// UnknownClientName is shown when the client registered without a name.
const UnknownClientName = "Unknown MCP Client"

// ServerInfo describes the MCP server the client wants access to.
type ServerInfo struct {
	Name        string
	LogoURL     string
	Description string
}

// Page is everything the consent page needs. Action is the path the form
// posts back to; State is the encoded continuation.
type Page struct {
	Client *domain.ClientInfo
	Server ServerInfo
	Action string
	State  string
}

//go:embed dialog.html.tmpl
var pageSource string

var pageTemplate = template.Must(template.New("dialog").Parse(pageSource))

type view struct {
	ClientName   string
	ClientURI    string
	PolicyURI    string
	TosURI       string
	RedirectURIs []string
	Contacts     string
	Server       ServerInfo
	Action       string
	State        string
}

func newView(p Page) view {
	v := view{
		ClientName: UnknownClientName,
		Server:     p.Server,
		Action:     p.Action,
		State:      p.State,
	}
	if c := p.Client; c != nil {
		if c.ClientName != "" {
			v.ClientName = c.ClientName
		}
		v.ClientURI = c.ClientURI
		v.PolicyURI = c.PolicyURI
		v.TosURI = c.TosURI
		v.RedirectURIs = c.RedirectURIs
		v.Contacts = strings.Join(c.Contacts, ", ")
	}
	return v
}

// Render writes the consent page to w.
func Render(w io.Writer, p Page) error {
	return pageTemplate.Execute(w, newView(p))
}

// RenderBytes renders the consent page into memory so callers can set headers
// only once rendering has succeeded.
func RenderBytes(p Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
