package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/garrettladley/slackerp/internal/version"
	"github.com/garrettladley/slackerp/internal/xerrors"
	"github.com/garrettladley/slackerp/internal/xhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HandleHealth handles GET /health. It reports unavailable when the
// storage backend does not answer.
func HandleHealth(backend Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := backend.Ping(ctx); err != nil {
			xerrors.WriteError(r.Context(), w, xerrors.ServiceUnavailable(xerrors.WithMessage("storage unavailable"), xerrors.WithCause(err)))
			return
		}
		xhttp.WriteOK(w, healthResponse{Status: "ok", Version: version.Get()})
	}
}
