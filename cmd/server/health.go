package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	platformredis "mcpauth/internal/platform/redis"
	"mcpauth/pkg/platform/httputil"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler reports 503 when a configured backing store is unreachable.
func healthHandler(rdb *platformredis.Client, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		check := func(name string, err error) {
			if err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				return
			}
			resp.Checks[name] = "ok"
		}
		if rdb != nil {
			check("redis", rdb.Health(ctx))
		}
		if db != nil {
			check("postgres", db.PingContext(ctx))
		}
		httputil.WriteJSON(w, status, resp)
	}
}
