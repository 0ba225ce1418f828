package httpadapter

import (
	"io"
	"net/http"
	"time"

	"github.com/PabloGalante/todo-agent/internal/adapters/dapr"
	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

type eventLogResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id,omitempty"`
	EventType string    `json:"event_type"`
	EventData string    `json:"event_data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const maxEventBody = 1 << 20

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		badRequest(w, "limit must be an integer")
		return
	}

	entries, err := s.audit.ListUserEvents(r.Context(), domain.UserID(r.PathValue("user_id")), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]eventLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, eventLogResponse{
			ID:        string(e.ID),
			UserID:    string(e.UserID),
			TaskID:    string(e.TaskID),
			EventType: string(e.EventType),
			EventData: e.EventData,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// handleDaprSubscribe tells the sidecar which topics to deliver here.
func (s *Server) handleDaprSubscribe(w http.ResponseWriter, _ *http.Request) {
	if s.onEvent == nil {
		writeJSON(w, http.StatusOK, []dapr.Subscription{})
		return
	}
	writeJSON(w, http.StatusOK, dapr.Subscriptions(s.pubsub, s.topic))
}

// handleTaskEvent always answers 200; the body status tells the sidecar
// whether to redeliver.
func (s *Server) handleTaskEvent(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerFromContext(r.Context())

	if s.onEvent == nil {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		log.Warn("failed to read event delivery", "error", err)
		writeJSON(w, http.StatusOK, dapr.DeliveryResponse{Status: domain.DeliveryRetry})
		return
	}

	ev, err := dapr.DecodeEvent(body)
	if err != nil {
		log.Warn("dropping undecodable event", "error", err)
		writeJSON(w, http.StatusOK, dapr.DeliveryResponse{Status: domain.DeliveryDrop})
		return
	}

	status := s.onEvent(r.Context(), ev)
	writeJSON(w, http.StatusOK, dapr.DeliveryResponse{Status: status})
}
