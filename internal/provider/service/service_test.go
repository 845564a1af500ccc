package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"mcpauth/internal/domain"
	jwttoken "mcpauth/internal/jwt_token"
	"mcpauth/internal/provider/models"
	"mcpauth/internal/provider/service/mocks"
	"mcpauth/internal/provider/store/client"
	"mcpauth/internal/provider/store/grant"
	"mcpauth/internal/provider/store/session"
	dErrors "mcpauth/pkg/domain-errors"
	"mcpauth/pkg/platform/audit"
)

const redirect = "https://client.example/cb"

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	clients  *client.InMemory
	sessions *session.InMemory
	jwt      *jwttoken.JWTService
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Now()
	s.clients = client.NewInMemory()
	s.sessions = session.NewInMemory()
	s.jwt = jwttoken.NewJWTService("test-key", "https://broker.test", "mcp")
	s.service = New(s.clients, grant.NewInMemory(), s.sessions, s.jwt,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) register(method string) *models.RegistrationResult {
	res, err := s.service.Register(s.ctx, &models.RegistrationRequest{
		RedirectURIs:            []string{redirect},
		ClientName:              "Acme Agent",
		TokenEndpointAuthMethod: method,
	})
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) parse(q url.Values) (*domain.AuthRequest, error) {
	return s.service.ParseAuthRequest(httptest.NewRequest("GET", "/authorize?"+q.Encode(), nil))
}

func (s *ServiceSuite) TestRegister() {
	s.Run("confidential client gets a hashed secret", func() {
		res := s.register(models.AuthMethodSecretPost)
		s.NotEmpty(res.ClientID)
		s.NotEmpty(res.ClientSecret)
		s.Equal(s.now.Unix(), res.ClientIDIssuedAt)

		stored, err := s.clients.FindByID(s.ctx, res.ClientID)
		s.Require().NoError(err)
		s.NotEqual(res.ClientSecret, stored.ClientSecretHash)
		s.NotEmpty(stored.ClientSecretHash)
	})

	s.Run("public client has no secret", func() {
		res := s.register(models.AuthMethodNone)
		s.Empty(res.ClientSecret)
	})

	s.Run("invalid metadata", func() {
		_, err := s.service.Register(s.ctx, &models.RegistrationRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRedirectURI))
	})
}

func (s *ServiceSuite) TestParseAuthRequest() {
	c := s.register(models.AuthMethodSecretBasic)
	public := s.register(models.AuthMethodNone)

	s.Run("valid request", func() {
		req, err := s.parse(url.Values{
			"response_type": {"code"},
			"client_id":     {c.ClientID},
			"redirect_uri":  {redirect},
			"scope":         {"mcp  read"},
			"state":         {"xyz"},
		})
		s.Require().NoError(err)
		s.Equal(c.ClientID, req.ClientID)
		s.Equal([]string{"mcp", "read"}, req.Scope)
		s.Equal("xyz", req.State)
	})

	s.Run("single registered redirect may be omitted", func() {
		req, err := s.parse(url.Values{"response_type": {"code"}, "client_id": {c.ClientID}})
		s.Require().NoError(err)
		s.Equal(redirect, req.RedirectURI)
	})

	cases := []struct {
		name string
		q    url.Values
		code dErrors.Code
	}{
		{"wrong response type", url.Values{"response_type": {"token"}, "client_id": {c.ClientID}}, dErrors.CodeInvalidRequest},
		{"missing client", url.Values{"response_type": {"code"}}, dErrors.CodeInvalidRequest},
		{"unknown client", url.Values{"response_type": {"code"}, "client_id": {"nope"}}, dErrors.CodeInvalidRequest},
		{"unregistered redirect", url.Values{"response_type": {"code"}, "client_id": {c.ClientID}, "redirect_uri": {"https://evil.example/cb"}}, dErrors.CodeInvalidRedirectURI},
		{"bad pkce method", url.Values{"response_type": {"code"}, "client_id": {c.ClientID}, "code_challenge": {"x"}, "code_challenge_method": {"S512"}}, dErrors.CodeInvalidRequest},
		{"public client without pkce", url.Values{"response_type": {"code"}, "client_id": {public.ClientID}}, dErrors.CodeInvalidRequest},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.parse(tc.q)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (s *ServiceSuite) TestLookupClient() {
	c := s.register(models.AuthMethodSecretBasic)

	info, err := s.service.LookupClient(s.ctx, c.ClientID)
	s.Require().NoError(err)
	s.Equal("Acme Agent", info.ClientName)

	info, err = s.service.LookupClient(s.ctx, "unknown")
	s.NoError(err)
	s.Nil(info)
}

// completeFor runs the grant half of the flow and returns the issued code.
func (s *ServiceSuite) completeFor(req domain.AuthRequest) string {
	target, err := s.service.CompleteAuthorization(s.ctx, domain.Completion{
		Identity:    domain.Identity{Login: "octocat", Name: "Octo Cat", Email: "octo@example.com"},
		AccessToken: "gho_upstream",
		Request:     req,
	})
	s.Require().NoError(err)
	u, err := url.Parse(target)
	s.Require().NoError(err)
	s.Equal("client.example", u.Host)
	s.Equal(req.State, u.Query().Get("state"))
	code := u.Query().Get("code")
	s.Require().NotEmpty(code)
	return code
}

func (s *ServiceSuite) TestCodeFlowWithPKCE() {
	public := s.register(models.AuthMethodNone)
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))

	code := s.completeFor(domain.AuthRequest{
		ResponseType:        "code",
		ClientID:            public.ClientID,
		RedirectURI:         redirect,
		Scope:               []string{"mcp"},
		State:               "st",
		CodeChallenge:       base64.RawURLEncoding.EncodeToString(sum[:]),
		CodeChallengeMethod: models.PKCEMethodS256,
	})

	s.Run("wrong verifier burns the code", func() {
		other := s.completeFor(domain.AuthRequest{
			ClientID: public.ClientID, RedirectURI: redirect, State: "st2",
			CodeChallenge: "abc", CodeChallengeMethod: models.PKCEMethodPlain,
		})
		_, err := s.service.Token(s.ctx, &models.TokenRequest{
			GrantType: "authorization_code", Code: other, ClientID: public.ClientID, CodeVerifier: "wrong",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidGrant))

		_, err = s.service.Token(s.ctx, &models.TokenRequest{
			GrantType: "authorization_code", Code: other, ClientID: public.ClientID, CodeVerifier: "abc",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidGrant))
	})

	res, err := s.service.Token(s.ctx, &models.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  redirect,
		ClientID:     public.ClientID,
		CodeVerifier: verifier,
	})
	s.Require().NoError(err)
	s.Equal("bearer", res.TokenType)
	s.Equal(3600, res.ExpiresIn)
	s.Equal("mcp", res.Scope)

	claims, err := s.jwt.ValidateToken(res.AccessToken)
	s.Require().NoError(err)
	s.Equal("octocat", claims.UserID)

	info, err := s.service.UserInfo(s.ctx, claims.ID)
	s.Require().NoError(err)
	s.Equal(&models.UserInfo{Login: "octocat", Name: "Octo Cat", Email: "octo@example.com"}, info)

	sess, err := s.sessions.FindByID(s.ctx, claims.ID)
	s.Require().NoError(err)
	s.Equal("Octo Cat", sess.Label)

	s.Run("code cannot be replayed", func() {
		_, err := s.service.Token(s.ctx, &models.TokenRequest{
			GrantType: "authorization_code", Code: code, ClientID: public.ClientID, CodeVerifier: verifier,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidGrant))
	})
}

func (s *ServiceSuite) TestConfidentialClientAuthentication() {
	c := s.register(models.AuthMethodSecretPost)
	req := domain.AuthRequest{ClientID: c.ClientID, RedirectURI: redirect, State: "st"}

	s.Run("wrong secret", func() {
		code := s.completeFor(req)
		_, err := s.service.Token(s.ctx, &models.TokenRequest{
			GrantType: "authorization_code", Code: code, ClientID: c.ClientID, ClientSecret: "nope",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidClient))
	})

	s.Run("code issued to another client", func() {
		other := s.register(models.AuthMethodSecretPost)
		code := s.completeFor(req)
		_, err := s.service.Token(s.ctx, &models.TokenRequest{
			GrantType: "authorization_code", Code: code, ClientID: other.ClientID, ClientSecret: other.ClientSecret,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidGrant))
	})

	s.Run("redirect mismatch", func() {
		code := s.completeFor(req)
		_, err := s.service.Token(s.ctx, &models.TokenRequest{
			GrantType: "authorization_code", Code: code, ClientID: c.ClientID, ClientSecret: c.ClientSecret,
			RedirectURI: "https://client.example/other",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidGrant))
	})

	s.Run("expired code", func() {
		code := s.completeFor(req)
		s.now = s.now.Add(DefaultGrantTTL + time.Second)
		defer func() { s.now = s.now.Add(-DefaultGrantTTL - time.Second) }()
		_, err := s.service.Token(s.ctx, &models.TokenRequest{
			GrantType: "authorization_code", Code: code, ClientID: c.ClientID, ClientSecret: c.ClientSecret,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidGrant))
	})

	s.Run("correct secret", func() {
		code := s.completeFor(req)
		res, err := s.service.Token(s.ctx, &models.TokenRequest{
			GrantType: "authorization_code", Code: code, ClientID: c.ClientID, ClientSecret: c.ClientSecret,
		})
		s.Require().NoError(err)
		s.NotEmpty(res.AccessToken)
	})
}

func (s *ServiceSuite) TestCompleteAuthorizationRevalidates() {
	c := s.register(models.AuthMethodSecretBasic)

	_, err := s.service.CompleteAuthorization(s.ctx, domain.Completion{
		Identity: domain.Identity{Login: "octocat"},
		Request:  domain.AuthRequest{ClientID: "forged", RedirectURI: redirect},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))

	_, err = s.service.CompleteAuthorization(s.ctx, domain.Completion{
		Identity: domain.Identity{Login: "octocat"},
		Request:  domain.AuthRequest{ClientID: c.ClientID, RedirectURI: "https://evil.example/cb"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidRedirectURI))

	_, err = s.service.CompleteAuthorization(s.ctx, domain.Completion{
		Request: domain.AuthRequest{ClientID: c.ClientID, RedirectURI: redirect},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
}

func (s *ServiceSuite) TestUserInfoRejectsUnknownAndExpired() {
	_, err := s.service.UserInfo(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Require().NoError(s.sessions.Save(s.ctx, &models.Session{ID: "old", ExpiresAt: s.now.Add(-time.Second)}))
	_, err = s.service.UserInfo(s.ctx, "old")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestMetadata() {
	md := s.service.Metadata("https://broker.test/")
	s.Equal("https://broker.test", md.Issuer)
	s.Equal("https://broker.test/token", md.TokenEndpoint)
	s.Contains(md.CodeChallengeMethodsSupported, "S256")
}

func TestStoreFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	clients := mocks.NewMockClientStore(ctrl)
	grants := mocks.NewMockGrantStore(ctrl)
	sessions := mocks.NewMockSessionStore(ctrl)
	tokens := mocks.NewMockTokenIssuer(ctrl)
	auditor := mocks.NewMockAuditPublisher(ctrl)
	svc := New(clients, grants, sessions, tokens, WithAuditPublisher(auditor),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx := context.Background()
	public := &models.Client{ClientID: "abc", RedirectURIs: []string{redirect}, TokenEndpointAuthMethod: models.AuthMethodNone}

	t.Run("registry outage on lookup", func(t *testing.T) {
		clients.EXPECT().FindByID(gomock.Any(), "abc").Return(nil, errors.New("connection refused"))
		_, err := svc.LookupClient(ctx, "abc")
		if !dErrors.HasCode(err, dErrors.CodeInternal) {
			t.Fatalf("expected internal error, got %v", err)
		}
	})

	t.Run("grant persistence failure", func(t *testing.T) {
		clients.EXPECT().FindByID(gomock.Any(), "abc").Return(public, nil)
		grants.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		_, err := svc.CompleteAuthorization(ctx, domain.Completion{
			Identity: domain.Identity{Login: "octocat"},
			Request:  domain.AuthRequest{ClientID: "abc", RedirectURI: redirect},
		})
		if !dErrors.HasCode(err, dErrors.CodeInternal) {
			t.Fatalf("expected internal error, got %v", err)
		}
	})

	t.Run("session persistence failure is audited as rejection", func(t *testing.T) {
		clients.EXPECT().FindByID(gomock.Any(), "abc").Return(public, nil)
		grants.EXPECT().Consume(gomock.Any(), "code").Return(&models.Grant{
			Code: "code", ClientID: "abc", RedirectURI: redirect, UserID: "octocat",
			ExpiresAt: time.Now().Add(time.Minute),
		}, nil)
		tokens.EXPECT().GenerateAccessToken("octocat", "abc", gomock.Any(), DefaultAccessTokenTTL).
			Return(&jwttoken.AccessToken{Token: "t", JTI: "j", ExpiresAt: time.Now().Add(time.Hour)}, nil)
		sessions.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			if e.Action != string(audit.EventTokenRejected) || e.Reason != string(dErrors.CodeInternal) {
				t.Errorf("unexpected audit event %+v", e)
			}
			return nil
		})

		_, err := svc.Token(ctx, &models.TokenRequest{GrantType: "authorization_code", Code: "code", ClientID: "abc"})
		if !dErrors.HasCode(err, dErrors.CodeInternal) {
			t.Fatalf("expected internal error, got %v", err)
		}
	})
}
