// Package handlers provides HTTP handlers for the enrollment gateway.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/gridpulse/go-dre/internal/api/middleware"
	"github.com/gridpulse/go-dre/internal/connector"
	"github.com/gridpulse/go-dre/internal/infrastructure/postgres"
	"github.com/gridpulse/go-dre/internal/utility/client"
)

// EnrollmentHandler exposes the connector's operations to the enrollment
// form.
type EnrollmentHandler struct {
	conn            connector.Connector
	audit           *postgres.Store
	logger          *zap.Logger
	minSlotCapacity int
}

// NewEnrollmentHandler creates the handler. audit may be nil when the call
// log endpoint is not wanted.
func NewEnrollmentHandler(conn connector.Connector, audit *postgres.Store, minSlotCapacity int, logger *zap.Logger) *EnrollmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minSlotCapacity < 1 {
		minSlotCapacity = 1
	}
	return &EnrollmentHandler{
		conn:            conn,
		audit:           audit,
		logger:          logger,
		minSlotCapacity: minSlotCapacity,
	}
}

// Routes returns the handler routes.
func (h *EnrollmentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/accounts/validate", h.ValidateAccount)
	r.Post("/enrollments", h.SubmitEnrollment)
	r.Post("/schedule/slots", h.GetSlots)
	r.Post("/schedule/book", h.BookAppointment)
	r.Get("/connector", h.ConnectorInfo)
	r.Get("/connector/test", h.TestConnection)
	r.Get("/audit/calls", h.RecentCalls)
	return r
}

// FieldsRequest carries raw form fields.
type FieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

// ValidateAccount handles POST /accounts/validate.
func (h *EnrollmentHandler) ValidateAccount(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("enrollment-handler").Start(h.correlated(r), "validate_account")
	defer span.End()

	req, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	res := h.conn.ValidateAccount(ctx, req.Fields)
	span.SetAttributes(
		attribute.Bool("valid", res.Success),
		attribute.String("error_code", res.ErrorCode),
	)
	h.respond(w, http.StatusOK, res)
}

// SubmitEnrollment handles POST /enrollments.
func (h *EnrollmentHandler) SubmitEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("enrollment-handler").Start(h.correlated(r), "submit_enrollment")
	defer span.End()

	req, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	res := h.conn.SubmitEnrollment(ctx, req.Fields)
	if res.Success {
		h.logger.Info("enrollment submitted",
			zap.String("confirmation_id", res.ConfirmationID),
			zap.String("idempotency_key", res.IdempotencyKey),
			zap.String("request_id", middleware.GetRequestID(ctx)),
		)
		h.respond(w, http.StatusCreated, res)
		return
	}
	span.SetAttributes(attribute.String("error_code", res.ErrorCode))
	h.respond(w, http.StatusOK, res)
}

// SlotsRequest asks for installer availability.
type SlotsRequest struct {
	Fields      map[string]string `json:"fields"`
	MinCapacity int               `json:"min_capacity,omitempty"`
}

// GetSlots handles POST /schedule/slots.
func (h *EnrollmentHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("enrollment-handler").Start(h.correlated(r), "get_schedule_slots")
	defer span.End()

	var req SlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	minCapacity := req.MinCapacity
	if minCapacity < 1 {
		minCapacity = h.minSlotCapacity
	}

	res := h.conn.GetScheduleSlots(ctx, req.Fields, minCapacity)
	span.SetAttributes(attribute.Int("days", len(res.Days)))
	h.respond(w, http.StatusOK, res)
}

// BookRequest books one slot.
type BookRequest struct {
	Fields map[string]string       `json:"fields"`
	Slot   connector.SlotSelection `json:"slot"`
}

// BookAppointment handles POST /schedule/book.
func (h *EnrollmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("enrollment-handler").Start(h.correlated(r), "book_appointment")
	defer span.End()

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Slot.Date == "" || req.Slot.Bucket == "" {
		h.jsonError(w, "slot date and bucket are required", http.StatusBadRequest)
		return
	}

	res := h.conn.BookAppointment(ctx, req.Fields, req.Slot)
	if res.Success {
		h.logger.Info("appointment booked",
			zap.String("confirmation_number", res.ConfirmationNumber),
			zap.String("date", req.Slot.Date),
			zap.String("request_id", middleware.GetRequestID(ctx)),
		)
		h.respond(w, http.StatusCreated, res)
		return
	}
	span.SetAttributes(attribute.String("error_code", res.ErrorCode))
	h.respond(w, http.StatusOK, res)
}

// ConnectorInfo handles GET /connector.
func (h *EnrollmentHandler) ConnectorInfo(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]interface{}{
		"id":       h.conn.ID(),
		"name":     h.conn.Name(),
		"features": h.conn.SupportedFeatures(),
		"config":   h.conn.ConfigFields(),
		"presets":  h.conn.Presets(),
	})
}

// TestConnection handles GET /connector/test.
func (h *EnrollmentHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	res := h.conn.TestConnection(h.correlated(r))
	status := http.StatusOK
	if !res.Success {
		status = http.StatusServiceUnavailable
	}
	h.respond(w, status, res)
}

// RecentCalls handles GET /audit/calls.
func (h *EnrollmentHandler) RecentCalls(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		h.jsonError(w, "call log not configured", http.StatusNotFound)
		return
	}

	entries, err := h.audit.RecentCalls(r.Context(), 100)
	if err != nil {
		h.logger.Error("read call log", zap.Error(err))
		h.jsonError(w, "failed to read call log", http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusOK, entries)
}

// correlated threads the request ID into the context as the platform
// correlation ID.
func (h *EnrollmentHandler) correlated(r *http.Request) context.Context {
	ctx := r.Context()
	if id := middleware.GetRequestID(ctx); id != "" {
		ctx = client.WithCorrelationID(ctx, id)
	}
	return ctx
}

func (h *EnrollmentHandler) decodeFields(w http.ResponseWriter, r *http.Request) (FieldsRequest, bool) {
	var req FieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if len(req.Fields) == 0 {
		h.jsonError(w, "fields are required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *EnrollmentHandler) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *EnrollmentHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
