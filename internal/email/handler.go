package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("email")

type Handler struct {
	logger *slog.Logger
	queued metric.Int64Counter
}

func NewHandler(logger *slog.Logger) *Handler {
	queued, _ := meter.Int64Counter("email.messages.queued",
		metric.WithDescription("Messages accepted by the mail sink"))

	return &Handler{
		logger: logger,
		queued: queued,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// HandleSend accepts a message for delivery. Messages are only logged.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.To) == "" {
		h.writeError(w, http.StatusBadRequest, "to is required")
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	id := uuid.NewString()
	if h.queued != nil {
		h.queued.Add(r.Context(), 1)
	}

	h.logger.Info("email queued", "id", id, "to", req.To, "subject", req.Subject, "body_bytes", len(req.Body))
	h.writeJSON(w, http.StatusAccepted, sendResponse{Status: "queued", ID: id})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
