package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/defensehub/defensehub/config"
	"github.com/defensehub/defensehub/internal/infrastructure/realtime"
)

// streamFeature maps a group kind to the flag gating its stream.
func streamFeature(kind realtime.GroupKind) string {
	switch kind {
	case realtime.GroupSession:
		return config.FeatureRealtimeSessionStream
	case realtime.GroupStudent:
		return config.FeatureRealtimeStudentStream
	case realtime.GroupEvaluator:
		return config.FeatureRealtimeEvaluatorStream
	default:
		return config.FeatureRealtimeGlobalStream
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIVE SCORE STREAM (Server-Sent Events)
// ══════════════════════════════════════════════════════════════════════════════

// handleStream opens a Server-Sent Events stream and subscribes it to the
// requested fan-out groups.
//
//	GET /api/v1/stream?groups=session_7,student_S1
//
// Valid group descriptors: "all_scores", "session_<id>", "student_<id>",
// "evaluator_<id>". A connection subscribed to several matching groups
// receives the same event once per membership.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "stream_unavailable", "Real-time streaming is not enabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming_unsupported", "Response writer does not support streaming")
		return
	}

	groupsParam := r.URL.Query().Get("groups")
	if groupsParam == "" {
		groupsParam = "all_scores"
	}

	var groups []realtime.Group
	for _, descriptor := range strings.Split(groupsParam, ",") {
		group, err := realtime.ParseGroup(strings.TrimSpace(descriptor))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_group", err.Error())
			return
		}
		groups = append(groups, group)
	}

	if s.deps.Features != nil {
		featureCtx := &config.FeatureContext{UserID: r.URL.Query().Get("user_id")}
		for _, group := range groups {
			if !s.deps.Features.IsEnabled(streamFeature(group.Kind), featureCtx) {
				writeJSONError(w, http.StatusForbidden, "stream_disabled",
					fmt.Sprintf("Streaming is disabled for group %q", group.Descriptor()))
				return
			}
		}
	}

	// The write pump is the only goroutine touching the response writer
	// once the stream is open.
	deliverer := realtime.DelivererFunc(func(ctx context.Context, connectionID, eventName string, payload []byte) error {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	cfg := realtime.DefaultConnectionConfig(deliverer)
	if s.config.StreamQueueSize > 0 {
		cfg.QueueSize = s.config.StreamQueueSize
	}
	if s.config.StreamSendTimeout > 0 {
		cfg.SendTimeout = s.config.StreamSendTimeout
	}
	if s.config.StreamMaxSendAttempts > 0 {
		cfg.MaxSendAttempts = s.config.StreamMaxSendAttempts
	}
	cfg.Logger = s.logger
	cfg.OnClose = func(c *realtime.Connection) {
		s.deps.Registry.OnDisconnect(c)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	conn := realtime.NewConnection(uuid.NewString(), cfg)

	for _, group := range groups {
		if err := s.deps.Registry.Subscribe(conn, group); err != nil {
			conn.Close()
			conn.Wait()
			writeDomainError(w, err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Info("stream opened",
		"connection_id", conn.ID(),
		"groups", groupsParam,
		"request_id", getRequestID(r.Context()),
	)

	// Block until the client goes away, then tear the connection down.
	<-r.Context().Done()

	conn.Close()
	conn.Wait()

	s.logger.Info("stream closed", "connection_id", conn.ID())
}
