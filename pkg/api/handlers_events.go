package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/kitt/pkg/eventbus"
)

// eventsHandler handles GET /events?stream=<id>, a Server-Sent Events feed
// for one run or campaign stream. A client reconnecting with Last-Event-ID
// first replays any persisted log lines it missed, then switches to live
// delivery from the Event Bus. Status events are bus-only and are not
// replayed on reconnect, since they are never persisted to the log stream.
func (s *Server) eventsHandler(c *gin.Context) {
	streamID := c.Query("stream")
	if streamID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "stream query parameter is required"})
		return
	}

	var afterSeq int64
	if last := c.GetHeader("Last-Event-ID"); last != "" {
		if n, err := strconv.ParseInt(last, 10, 64); err == nil {
			afterSeq = n
		}
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, canFlush := c.Writer.(http.Flusher)

	backlog, err := s.store.ListLogSince(c.Request.Context(), streamID, afterSeq, 1000)
	if err != nil {
		respondError(c, err)
		return
	}
	seq := afterSeq
	for _, evt := range backlog {
		fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Kind, evt.Payload)
		seq = evt.Sequence
	}
	if canFlush {
		flusher.Flush()
	}

	sub := s.bus.Subscribe(streamID)
	defer sub.Unsubscribe()

	ctx := c.Request.Context()
	for {
		evt, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if evt.Kind == eventbus.EventKindDropped {
			fmt.Fprintf(c.Writer, "event: dropped\ndata: {\"dropped\":%d}\n\n", evt.Dropped)
		} else {
			seq++
			fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n", seq, evt.Kind, evt.Payload)
		}
		if canFlush {
			flusher.Flush()
		}
	}
}
