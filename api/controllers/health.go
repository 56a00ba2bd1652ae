package controllers

import (
	"context"
	"net/http"

	"github.com/varejolabs/loja-backend/api/responses"
	"github.com/varejolabs/loja-backend/pkg/config"
	"github.com/varejolabs/loja-backend/pkg/logger"
)

// Pinger is the readiness probe surface shared by infra clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Loja-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency readiness. Any failing dependency
// flips the response to 503 so the load balancer drains the instance.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Loja-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		check := func(name string, p Pinger) {
			if p == nil {
				checks[name] = "skipped"
				return
			}
			if err := p.Ping(r.Context()); err != nil {
				if logg != nil {
					logg.Error(r.Context(), "readiness check failed: "+name, err)
				}
				checks[name] = "down"
				healthy = false
				return
			}
			checks[name] = "up"
		}

		check("database", dbP)
		check("redis", redisP)

		status := http.StatusOK
		state := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": state,
			"checks": checks,
		})
	}
}
