package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/kitt/pkg/ledger"
)

// appendLogHandler handles POST /commands/{command_id}/log: one line of
// agent-side stdout/stderr, appended to the owning run's stream and
// re-broadcast on the Event Bus for live subscribers.
func (s *Server) appendLogHandler(c *gin.Context) {
	var req AppendLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	run, err := s.store.GetRunByCommandID(c.Request.Context(), c.Param("command_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	payload, err := json.Marshal(map[string]string{"line": req.Line})
	if err != nil {
		respondError(c, err)
		return
	}

	evt, err := s.store.AppendLog(c.Request.Context(), run.ID, ledger.StreamEventKindLog, payload)
	if err != nil {
		respondError(c, err)
		return
	}

	s.bus.Publish(run.ID, "log", evt.Payload)

	c.Status(http.StatusOK)
}
