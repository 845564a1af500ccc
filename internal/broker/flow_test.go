package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"mcpauth/internal/broker/mocks"
	"mcpauth/internal/consent"
	"mcpauth/internal/consent/dialog"
	"mcpauth/internal/continuation"
	"mcpauth/internal/domain"
	"mcpauth/internal/signer"
	"mcpauth/internal/upstream"
	"mcpauth/pkg/testutil"
)

const (
	flowCookieName     = "mcp-approved-clients"
	flowUpstreamClient = "upstream-client-id"
)

type flowEnv struct {
	router   chi.Router
	provider *mocks.MockProvider
	identity *mocks.MockIdentityFetcher
	cache    *consent.Cache
	signer   *signer.Signer
	idp      *httptest.Server
}

// newFlowEnv wires the real consent cache, codec, dialog and token exchange
// against a stub identity provider whose token endpoint answers with
// tokenStatus.
func newFlowEnv(t *testing.T, tokenStatus int) *flowEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/oauth/access_token" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(tokenStatus)
		if tokenStatus == http.StatusOK {
			_, _ = io.WriteString(w, `{"access_token":"gho_upstream","token_type":"bearer"}`)
			return
		}
		_, _ = io.WriteString(w, `{"error":"bad_verification_code","error_description":"secret-ish detail"}`)
	}))
	t.Cleanup(idp.Close)

	s, err := signer.New("flow-test-secret")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := consent.New(s, consent.WithCookieName(flowCookieName), consent.WithLogger(logger))

	exchanger := upstream.New(upstream.Config{
		ClientID:     flowUpstreamClient,
		ClientSecret: "upstream-secret",
		AuthorizeURL: idp.URL + "/login/oauth/authorize",
		TokenURL:     idp.URL + "/login/oauth/access_token",
		Scope:        "read:user",
		HTTPClient:   idp.Client(),
	}, logger, nil)

	env := &flowEnv{
		provider: mocks.NewMockProvider(ctrl),
		identity: mocks.NewMockIdentityFetcher(ctrl),
		cache:    cache,
		signer:   s,
		idp:      idp,
	}
	h := New(env.provider, exchanger, env.identity, cache, nil, logger, nil, Config{
		PublicURL: "https://broker.test",
		Scope:     "read:user",
		Server:    dialog.ServerInfo{Name: "Flow MCP"},
	})
	env.router = chi.NewRouter()
	h.Register(env.router)
	return env
}

func assertUpstreamRedirect(t *testing.T, env *flowEnv, rr *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), env.idp.URL+"/login/oauth/authorize?"))
	q := loc.Query()
	assert.Equal(t, flowUpstreamClient, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://broker.test/callback", q.Get("redirect_uri"))
	assert.Equal(t, "read:user", q.Get("scope"))

	var carried domain.AuthRequest
	require.NoError(t, continuation.Decode(q.Get("state"), &carried))
	assert.Equal(t, "abc", carried.ClientID)
	return loc
}

func TestFlow_UnseenClientGetsDialog(t *testing.T) {
	env := newFlowEnv(t, http.StatusOK)
	env.provider.EXPECT().ParseAuthRequest(gomock.Any()).Return(sampleRequest(), nil)
	env.provider.EXPECT().LookupClient(gomock.Any(), "abc").
		Return(&domain.ClientInfo{ClientID: "abc", ClientName: "Acme Agent"}, nil)

	rr := testutil.DoRequest(env.router, httptest.NewRequest(http.MethodGet, "/authorize?client_id=abc", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Acme Agent")
	assert.Contains(t, body, `action="/authorize"`)
	assert.Empty(t, rr.Header().Values("Set-Cookie"))
}

func TestFlow_ApprovalSetsVerifiedCookie(t *testing.T) {
	env := newFlowEnv(t, http.StatusOK)
	state, err := continuation.Encode(approvalState{OAuthReqInfo: sampleRequest()})
	require.NoError(t, err)

	req := testutil.NewFormRequest(t, http.MethodPost, "/authorize", url.Values{"state": {state}})
	rr := testutil.DoRequest(env.router, req)

	assertUpstreamRedirect(t, env, rr)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, flowCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, consent.MaxAge, c.MaxAge)

	sig, encoded, ok := strings.Cut(c.Value, ".")
	require.True(t, ok)
	payload, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.True(t, env.signer.Verify(sig, payload))
	var clients []string
	require.NoError(t, json.Unmarshal(payload, &clients))
	assert.Contains(t, clients, "abc")
}

func TestFlow_ApprovedClientSkipsDialog(t *testing.T) {
	env := newFlowEnv(t, http.StatusOK)
	cookie, err := env.cache.Approve("", "abc")
	require.NoError(t, err)
	env.provider.EXPECT().ParseAuthRequest(gomock.Any()).Return(sampleRequest(), nil)

	req := httptest.NewRequest(http.MethodGet, "/authorize?client_id=abc", nil)
	req.AddCookie(cookie)
	rr := testutil.DoRequest(env.router, req)

	assertUpstreamRedirect(t, env, rr)
	assert.NotContains(t, rr.Body.String(), "<form")
}

func TestFlow_TamperedCookieShowsDialogAgain(t *testing.T) {
	env := newFlowEnv(t, http.StatusOK)
	cookie, err := env.cache.Approve("", "other")
	require.NoError(t, err)
	forged := base64.StdEncoding.EncodeToString([]byte(`["abc"]`))
	sig, _, _ := strings.Cut(cookie.Value, ".")
	cookie.Value = sig + "." + forged

	env.provider.EXPECT().ParseAuthRequest(gomock.Any()).Return(sampleRequest(), nil)
	env.provider.EXPECT().LookupClient(gomock.Any(), "abc").Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
	req.AddCookie(cookie)
	rr := testutil.DoRequest(env.router, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), dialog.UnknownClientName)
}

func TestFlow_RejectedCodeNeverCompletes(t *testing.T) {
	env := newFlowEnv(t, http.StatusUnauthorized)
	// No CompleteAuthorization or FetchIdentity expectation: any call fails the test.

	state, err := continuation.Encode(sampleRequest())
	require.NoError(t, err)
	q := url.Values{"code": {"rejected-code"}, "state": {state}}
	rr := testutil.DoRequest(env.router, httptest.NewRequest(http.MethodGet, "/callback?"+q.Encode(), nil))

	assert.GreaterOrEqual(t, rr.Code, http.StatusBadRequest)
	assert.Empty(t, rr.Header().Get("Location"))
	assert.NotContains(t, rr.Body.String(), "secret-ish detail")
}

func TestFlow_CallbackCompletes(t *testing.T) {
	env := newFlowEnv(t, http.StatusOK)
	identity := domain.Identity{Login: "octo", Name: "Octo Cat"}
	env.identity.EXPECT().FetchIdentity(gomock.Any(), "gho_upstream").Return(identity, nil)
	env.provider.EXPECT().CompleteAuthorization(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c domain.Completion) (string, error) {
			assert.Equal(t, identity, c.Identity)
			assert.Equal(t, "gho_upstream", c.AccessToken)
			assert.Equal(t, *sampleRequest(), c.Request)
			return "https://client.test/cb?code=downstream&state=client-state", nil
		})

	state, err := continuation.Encode(sampleRequest())
	require.NoError(t, err)
	q := url.Values{"code": {"good-code"}, "state": {state}}
	rr := testutil.DoRequest(env.router, httptest.NewRequest(http.MethodGet, "/callback?"+q.Encode(), nil))

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://client.test/cb?code=downstream&state=client-state", rr.Header().Get("Location"))
}

func TestFlow_ApproveOnceThenSkip(t *testing.T) {
	env := newFlowEnv(t, http.StatusOK)
	var approved *http.Cookie

	testutil.Given(t, "a client the user has never approved", func(t *testing.T) {
		env.provider.EXPECT().ParseAuthRequest(gomock.Any()).Return(sampleRequest(), nil)
		env.provider.EXPECT().LookupClient(gomock.Any(), "abc").
			Return(&domain.ClientInfo{ClientID: "abc", ClientName: "Acme Agent"}, nil)

		rr := testutil.DoRequest(env.router, httptest.NewRequest(http.MethodGet, "/authorize", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Acme Agent")
	})

	testutil.When(t, "the user approves it", func(t *testing.T) {
		state, err := continuation.Encode(approvalState{OAuthReqInfo: sampleRequest()})
		require.NoError(t, err)
		rr := testutil.DoRequest(env.router,
			testutil.NewFormRequest(t, http.MethodPost, "/authorize", url.Values{"state": {state}}))
		assertUpstreamRedirect(t, env, rr)
		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		approved = cookies[0]
	})

	testutil.Then(t, "the next authorization goes straight upstream", func(t *testing.T) {
		require.NotNil(t, approved)
		env.provider.EXPECT().ParseAuthRequest(gomock.Any()).Return(sampleRequest(), nil)

		req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
		req.AddCookie(approved)
		assertUpstreamRedirect(t, env, testutil.DoRequest(env.router, req))
	})
}
