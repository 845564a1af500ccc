package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mcpauth/internal/broker"
	"mcpauth/internal/consent"
	"mcpauth/internal/consent/dialog"
	jwttoken "mcpauth/internal/jwt_token"
	"mcpauth/internal/platform/config"
	"mcpauth/internal/platform/metrics"
	"mcpauth/internal/platform/middleware"
	"mcpauth/internal/platform/postgres"
	platformredis "mcpauth/internal/platform/redis"
	providerhandler "mcpauth/internal/provider/handler"
	"mcpauth/internal/provider/service"
	clientstore "mcpauth/internal/provider/store/client"
	grantstore "mcpauth/internal/provider/store/grant"
	sessionstore "mcpauth/internal/provider/store/session"
	"mcpauth/internal/ratelimit"
	"mcpauth/internal/signer"
	"mcpauth/internal/upstream"
	"mcpauth/pkg/platform/audit"
	"mcpauth/pkg/platform/audit/publisher"
	auditkafka "mcpauth/pkg/platform/audit/store/kafka"
	auditmemory "mcpauth/pkg/platform/audit/store/memory"
	auditpostgres "mcpauth/pkg/platform/audit/store/postgres"
	"mcpauth/pkg/platform/middleware/metadata"
	"mcpauth/pkg/platform/middleware/requesttime"
)

const (
	tokenAudience   = "mcp"
	auditBufferSize = 1024
)

// app is the wired process: the root handler plus what serve has to run and
// tear down around it.
type app struct {
	router   http.Handler
	expirers []namedExpirer
	closers  []func()
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type stores struct {
	clients  service.ClientStore
	grants   service.GrantStore
	sessions service.SessionStore
}

func buildApp(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	m := metrics.New()

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		db, err = postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err = postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}

	st := a.buildStores(rdb, db)
	auditor, err := a.buildAuditor(cfg.Kafka, db, log)
	if err != nil {
		return nil, err
	}

	sig, err := signer.New(cfg.Cookie.Secret)
	if err != nil {
		return nil, fmt.Errorf("cookie signer: %w", err)
	}
	cache := consent.New(sig,
		consent.WithCookieName(cfg.Cookie.Name),
		consent.WithDomain(cfg.Cookie.Domain),
		consent.WithLogger(log),
		consent.WithMetrics(m),
	)

	exchanger := upstream.New(upstream.Config{
		ClientID:     cfg.Upstream.ClientID,
		ClientSecret: cfg.Upstream.ClientSecret,
		AuthorizeURL: cfg.Upstream.AuthorizeURL,
		TokenURL:     cfg.Upstream.TokenURL,
		Scope:        cfg.Upstream.Scope,
		Timeout:      cfg.Upstream.Timeout,
	}, log, m)
	identity := upstream.NewGitHubIdentity(
		upstream.WithAPIBaseURL(cfg.Upstream.APIBaseURL),
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithLogger(log),
		upstream.WithMetrics(m),
	)

	tokens := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, tokenAudience)
	provider := service.New(st.clients, st.grants, st.sessions, tokens,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(auditor),
		service.WithGrantTTL(cfg.GrantTTL),
		service.WithAccessTokenTTL(cfg.JWT.AccessTokenTTL),
	)

	brokerHandler := broker.New(provider, exchanger, identity, cache, auditor, log, m, broker.Config{
		PublicURL: cfg.PublicURL,
		Scope:     cfg.Upstream.Scope,
		Server: dialog.ServerInfo{
			Name:        cfg.Dialog.ServerName,
			LogoURL:     cfg.Dialog.LogoURL,
			Description: cfg.Dialog.Description,
		},
	})
	limiter := a.buildLimiter(cfg.RateLimit, rdb, log)
	providerHandler := providerhandler.New(provider, jwttoken.NewJWTServiceAdapter(tokens), log, m, cfg.PublicURL,
		providerhandler.WithRegisterLimit(limiter.ByIP(ratelimit.Rule{
			Class:  "register",
			Limit:  cfg.RateLimit.RegisterPerMinute,
			Window: time.Minute,
		})),
		providerhandler.WithTokenLimit(limiter.ByIP(ratelimit.Rule{
			Class:  "token",
			Limit:  cfg.RateLimit.TokenPerMinute,
			Window: time.Minute,
		})),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(rdb, db))
	brokerHandler.Register(r)
	providerHandler.Register(r)

	a.router = r
	log.InfoContext(ctx, "components wired",
		"redis", rdb != nil,
		"postgres", db != nil,
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)
	return a, nil
}

// buildStores prefers Postgres for the registry and Redis for short-lived
// grants and sessions, falling back to memory.
func (a *app) buildStores(rdb *platformredis.Client, db *sql.DB) stores {
	var st stores
	switch {
	case db != nil:
		st.clients = clientstore.NewPostgres(db)
	case rdb != nil:
		st.clients = clientstore.NewRedis(rdb.Client)
	default:
		st.clients = clientstore.NewInMemory()
	}

	if rdb != nil {
		st.grants = grantstore.NewRedis(rdb.Client)
		st.sessions = sessionstore.NewRedis(rdb.Client)
		return st
	}
	grants := grantstore.NewInMemory()
	sessions := sessionstore.NewInMemory()
	st.grants = grants
	st.sessions = sessions
	a.expirers = append(a.expirers,
		namedExpirer{name: "grants", expirer: grants},
		namedExpirer{name: "sessions", expirer: sessions},
	)
	return st
}

func (a *app) buildLimiter(cfg config.RateLimit, rdb *platformredis.Client, log *slog.Logger) *ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.New(ratelimit.NewRedis(rdb.Client), log, ratelimit.WithDisabled(cfg.Disabled))
	}
	store := ratelimit.NewInMemory()
	a.expirers = append(a.expirers, namedExpirer{name: "ratelimit", expirer: store})
	return ratelimit.New(store, log, ratelimit.WithDisabled(cfg.Disabled))
}

// buildAuditor fans events out to every configured sink. The in-memory store
// is used only when nothing durable is configured.
func (a *app) buildAuditor(cfg config.Kafka, db *sql.DB, log *slog.Logger) (*publisher.Publisher, error) {
	var sinks []audit.Store
	if db != nil {
		sinks = append(sinks, auditpostgres.New(db))
	}
	if len(cfg.Brokers) > 0 {
		ks, err := auditkafka.Dial(cfg.Brokers, cfg.Topic)
		if err != nil {
			return nil, fmt.Errorf("audit kafka (%s): %w", strings.Join(cfg.Brokers, ","), err)
		}
		a.closers = append(a.closers, ks.Close)
		sinks = append(sinks, ks)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, auditmemory.NewInMemoryStore())
	}

	pub := publisher.NewPublisher(audit.Fanout(sinks...),
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}
