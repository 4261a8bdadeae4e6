package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/kitt/pkg/dispatch"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/registry"
	"github.com/codeready-toolchain/kitt/pkg/services"
)

// statusForError maps a domain error to an HTTP status code, per the error
// taxonomy in spec §7: not_found -> 404, conflict (including a taken agent
// name) -> 409, auth -> 401, a full dispatch queue -> 503, everything else
// -> 500. Validation errors have no case here; handlers answer them with
// 400 directly.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, registry.ErrNotFound), errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, registry.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, registry.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, dispatch.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON ErrorResponse with the appropriate
// status code, logging unexpected (5xx) errors.
func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("api: request failed", "error", err, "path", c.FullPath())
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
