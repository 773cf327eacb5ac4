package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridpulse/go-dre/internal/observability/metrics"
	"github.com/gridpulse/go-dre/internal/utility/client"
	"github.com/gridpulse/go-dre/internal/utility/params"
	"github.com/gridpulse/go-dre/internal/utility/response"
	"github.com/gridpulse/go-dre/internal/utility/result"
	"github.com/gridpulse/go-dre/internal/utility/xmltree"
	"github.com/gridpulse/go-dre/pkg/idempotency"
)

// EventRecorder persists a business event for asynchronous publication.
// The postgres audit store implements it with a transactional outbox.
type EventRecorder interface {
	Record(ctx context.Context, eventType string, payload map[string]interface{}, correlationID string) error
}

// Business event types recorded by the adapter.
const (
	EventEnrollmentSubmitted = "enrollment.submitted"
	EventAppointmentBooked   = "appointment.booked"
)

// Adapter implements Connector against the utility demand-response
// platform, composing the field mapper, resilient client, response
// validator, and result interpreters.
type Adapter struct {
	client      *client.Client
	programCode string
	logger      *zap.Logger
	metrics     *metrics.Metrics
	events      EventRecorder
	inbox       *idempotency.Inbox
	now         func() time.Time
}

// NewAdapter creates the platform adapter.
func NewAdapter(c *client.Client, programCode string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:      c,
		programCode: programCode,
		logger:      logger,
		now:         time.Now,
	}
}

// WithMetrics attaches the Prometheus registry bundle.
func (a *Adapter) WithMetrics(m *metrics.Metrics) *Adapter {
	a.metrics = m
	return a
}

// WithEvents attaches the business-event recorder.
func (a *Adapter) WithEvents(rec EventRecorder) *Adapter {
	a.events = rec
	return a
}

// WithInbox attaches the submission dedup guard.
func (a *Adapter) WithInbox(in *idempotency.Inbox) *Adapter {
	a.inbox = in
	return a
}

// ID identifies the connector in configuration and routing.
func (a *Adapter) ID() string { return "utility-dre" }

// Name is the human-readable connector name.
func (a *Adapter) Name() string { return "Utility Demand-Response Enrollment" }

// ConfigFields describes the connector's configuration inputs.
func (a *Adapter) ConfigFields() []ConfigField {
	return []ConfigField{
		{Name: "base_url", Label: "Platform base URL", Type: "url", Required: true},
		{Name: "pswd", Label: "Shared secret", Type: "password", Required: true, Secret: true},
		{Name: "program_code", Label: "Program code", Type: "string", Required: true},
		{Name: "timeout_seconds", Label: "Call timeout (seconds)", Type: "number"},
	}
}

// SupportedFeatures lists every capability this connector implements.
func (a *Adapter) SupportedFeatures() []Feature {
	return []Feature{
		FeatureAccountValidation,
		FeatureEnrollment,
		FeatureScheduling,
		FeatureBooking,
	}
}

// Presets returns the static per-program configuration bundles.
func (a *Adapter) Presets() []Preset { return ProgramPresets() }

// TestConnection probes the platform and reports reachability.
func (a *Adapter) TestConnection(ctx context.Context) TestConnectionResult {
	h := a.client.HealthCheck(ctx)
	msg := "platform reachable (" + string(h.State) + ")"
	if h.State == client.HealthError {
		msg = h.Error
	}
	return TestConnectionResult{
		Success:   h.State != client.HealthError,
		Message:   msg,
		LatencyMS: h.Latency.Milliseconds(),
	}
}

// ValidateAccount checks whether the account can enroll. The platform's
// rejection reasons come back as user-facing messages; transport failures
// surface as a generic connection error, never as a raw error.
func (a *Adapter) ValidateAccount(ctx context.Context, fields map[string]string) ValidateAccountResult {
	p, err := params.MapValidation(fields)
	if err != nil {
		return ValidateAccountResult{ErrorCode: ErrCodeMissingFields, ErrorMessage: err.Error()}
	}

	res, err := a.client.Call(ctx, client.PathValidate, p, http.MethodGet, true)
	if err != nil {
		return ValidateAccountResult{ErrorCode: ErrCodeConnection, ErrorMessage: connectionMessage(err)}
	}

	if v := response.Validate(response.KindValidation, res.Doc); !v.OK {
		a.rejectResponse(response.KindValidation, v.Errors)
		return ValidateAccountResult{ErrorCode: ErrCodeUntrustedResponse, ErrorMessage: "the platform returned an unusable response"}
	}

	r := result.NewValidation(res.Doc)
	if a.metrics != nil {
		a.metrics.AccountsValidated.Inc()
	}
	return ValidateAccountResult{
		Success:                       r.IsValid(),
		ErrorCode:                     r.ErrorCode(),
		ErrorMessage:                  r.ErrorMessage(),
		AlreadyEnrolled:               r.AlreadyEnrolled(),
		HasMedicalCondition:           r.HasMedicalCondition(),
		RequiresMedicalAcknowledgment: r.RequiresMedicalAcknowledgment(),
		Customer: Customer{
			FirstName: r.FirstName(),
			LastName:  r.LastName(),
			Email:     r.Email(),
			Street:    r.Street(),
			City:      r.City(),
			State:     r.State(),
			Zip:       r.Zip(),
		},
	}
}

// SubmitEnrollment maps and submits the enrollment. Each submission
// carries a deterministic idempotency key; with an inbox attached, a
// duplicate within the key's minute bucket returns the first submission's
// stored outcome instead of hitting the platform again.
func (a *Adapter) SubmitEnrollment(ctx context.Context, fields map[string]string) SubmitEnrollmentResult {
	p, err := params.MapEnrollment(fields)
	if err != nil {
		return SubmitEnrollmentResult{ErrorCode: ErrCodeMissingFields, ErrorMessage: err.Error()}
	}

	now := a.now()
	key := idempotency.GenerateKey(accountIdentifier(p), a.programCode, now)
	details := idempotency.KeyDetails(accountIdentifier(p), a.programCode, now)
	if a.inbox == nil {
		return a.submitMapped(ctx, p, key, details)
	}

	payload, _ := json.Marshal(fields)
	pr, err := a.inbox.Process(ctx, key, "submit_enrollment", payload,
		func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			out := a.submitMapped(ctx, p, key, details)
			if out.ErrorCode == ErrCodeConnection {
				// Recoverable in the inbox: a resubmission may succeed.
				return nil, errors.New(out.ErrorMessage)
			}
			return json.Marshal(out)
		})
	if err != nil {
		if errors.Is(err, idempotency.ErrSubmissionInProgress) {
			return SubmitEnrollmentResult{
				IdempotencyKey: key,
				ErrorCode:      ErrCodeConnection,
				ErrorMessage:   "this enrollment is already being processed",
			}
		}
		return SubmitEnrollmentResult{IdempotencyKey: key, ErrorCode: ErrCodeConnection, ErrorMessage: connectionMessage(err)}
	}

	var out SubmitEnrollmentResult
	if err := json.Unmarshal(pr.Result, &out); err != nil {
		return SubmitEnrollmentResult{IdempotencyKey: key, ErrorCode: ErrCodeConnection, ErrorMessage: "stored submission outcome is unreadable"}
	}
	if !pr.IsNew {
		a.logger.Info("duplicate submission collapsed",
			zap.String("idempotency_key", key))
	}
	return out
}

// submitMapped performs the platform call for already-mapped parameters.
func (a *Adapter) submitMapped(ctx context.Context, p map[string]string, key string, keyDetails map[string]string) SubmitEnrollmentResult {
	res, err := a.client.Call(ctx, client.PathEnroll, p, http.MethodPost, true)
	if err != nil {
		return SubmitEnrollmentResult{IdempotencyKey: key, ErrorCode: ErrCodeConnection, ErrorMessage: connectionMessage(err)}
	}

	if v := response.Validate(response.KindValidation, res.Doc); !v.OK {
		a.rejectResponse(response.KindValidation, v.Errors)
		return SubmitEnrollmentResult{IdempotencyKey: key, ErrorCode: ErrCodeUntrustedResponse, ErrorMessage: "the platform returned an unusable response"}
	}

	r := result.NewValidation(res.Doc)
	out := SubmitEnrollmentResult{
		Success:        r.IsValid(),
		ConfirmationID: confirmationFrom(res.Doc),
		IdempotencyKey: key,
		ErrorCode:      r.ErrorCode(),
		ErrorMessage:   r.ErrorMessage(),
	}

	if out.Success {
		if a.metrics != nil {
			a.metrics.EnrollmentsSubmitted.Inc()
		}
		a.record(ctx, EventEnrollmentSubmitted, map[string]interface{}{
			"idempotency_key": key,
			"key_details":     keyDetails,
			"confirmation_id": out.ConfirmationID,
			"program_code":    a.programCode,
			"contract_code":   p["contractNo"],
		})
	}
	return out
}

// GetScheduleSlots fetches equipment and installer availability for the
// account. Weekends and fully-booked days are filtered out before the
// days reach the caller.
func (a *Adapter) GetScheduleSlots(ctx context.Context, fields map[string]string, minCapacity int) ScheduleSlotsResult {
	p, err := params.MapScheduling(fields)
	if err != nil {
		return ScheduleSlotsResult{ErrorCode: ErrCodeMissingFields, ErrorMessage: err.Error()}
	}

	res, err := a.client.Call(ctx, client.PathScheduling, p, http.MethodPost, true)
	if err != nil {
		return ScheduleSlotsResult{ErrorCode: ErrCodeConnection, ErrorMessage: connectionMessage(err)}
	}

	if v := response.Validate(response.KindScheduling, res.Doc); !v.OK {
		a.rejectResponse(response.KindScheduling, v.Errors)
		return ScheduleSlotsResult{ErrorCode: ErrCodeUntrustedResponse, ErrorMessage: "the platform returned an unusable response"}
	}

	r := result.NewScheduling(res.Doc, minCapacity)
	out := ScheduleSlotsResult{
		Success:      true,
		Region:       r.Region(),
		JobReference: r.JobReference(),
		Days:         make([]SlotDay, 0),
		Equipment: EquipmentSummary{
			ACOnly:   r.Equipment(result.EquipmentAC).Count,
			HeatOnly: r.Equipment(result.EquipmentHeat).Count,
			Combo:    r.Equipment(result.EquipmentCombo).Count,
			DCU:      r.DCUCount(),
		},
	}
	for _, day := range r.SlotsForDisplay() {
		sd := SlotDay{Date: day.Label, Buckets: make(map[string]SlotInfo, len(day.Slots))}
		for bucket, info := range day.Slots {
			sd.Buckets[string(bucket)] = SlotInfo{Available: info.Available, Capacity: info.Capacity}
		}
		out.Days = append(out.Days, sd)
	}
	return out
}

// BookAppointment books one day/bucket slot. The booking endpoint answers
// with either a bare confirmation number or an XML error message.
func (a *Adapter) BookAppointment(ctx context.Context, fields map[string]string, slot SlotSelection) BookAppointmentResult {
	bucket, ok := result.NormalizeTimeBucket(slot.Bucket)
	if !ok {
		return BookAppointmentResult{ErrorCode: ErrCodeMissingFields, ErrorMessage: "unrecognized time slot: " + slot.Bucket}
	}

	p, err := params.MapScheduling(fields)
	if err != nil {
		return BookAppointmentResult{ErrorCode: ErrCodeMissingFields, ErrorMessage: err.Error()}
	}
	p["apptDate"] = slot.Date
	p["apptTime"] = string(bucket)

	res, err := a.client.Call(ctx, client.PathSchedule, p, http.MethodPost, false)
	if err != nil {
		return BookAppointmentResult{ErrorCode: ErrCodeConnection, ErrorMessage: connectionMessage(err)}
	}

	out, ok := a.interpretBooking(res.Raw)
	if !ok {
		return out
	}
	if out.Success {
		if a.metrics != nil {
			a.metrics.AppointmentsBooked.Inc()
		}
		a.record(ctx, EventAppointmentBooked, map[string]interface{}{
			"confirmation_number": out.ConfirmationNumber,
			"date":                slot.Date,
			"bucket":              string(bucket),
			"program_code":        a.programCode,
		})
	}
	return out
}

// interpretBooking resolves the booking endpoint's dual response shape.
// The second return value is false when the response failed screening.
func (a *Adapter) interpretBooking(raw string) (BookAppointmentResult, bool) {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, "<") {
		if body == "" {
			return BookAppointmentResult{ErrorCode: ErrCodeUntrustedResponse, ErrorMessage: "the platform returned an empty booking response"}, false
		}
		if v := response.ScreenText("confirmNo", body); !v.OK {
			a.rejectResponse(response.KindBooking, v.Errors)
			return BookAppointmentResult{ErrorCode: ErrCodeUntrustedResponse, ErrorMessage: "the platform returned an unusable response"}, false
		}
		return BookAppointmentResult{Success: true, ConfirmationNumber: body}, true
	}

	doc, err := xmltree.Parse(body)
	if err != nil {
		return BookAppointmentResult{ErrorCode: ErrCodeUntrustedResponse, ErrorMessage: "the platform returned an unusable response"}, false
	}
	if v := response.Validate(response.KindBooking, doc); !v.OK {
		a.rejectResponse(response.KindBooking, v.Errors)
		return BookAppointmentResult{ErrorCode: ErrCodeUntrustedResponse, ErrorMessage: "the platform returned an unusable response"}, false
	}

	b := result.NewBooking(doc)
	return BookAppointmentResult{
		Success:            b.Confirmed(),
		ConfirmationNumber: b.ConfirmationNumber(),
		ErrorCode:          b.ErrorCode(),
		ErrorMessage:       b.ErrorMessage(),
	}, true
}

func (a *Adapter) rejectResponse(kind response.Kind, errs []string) {
	a.logger.Warn("platform response failed screening",
		zap.String("kind", kind.String()),
		zap.Strings("problems", errs))
	if a.metrics != nil {
		a.metrics.ResponsesRejected.WithLabelValues(kind.String()).Inc()
	}
}

func (a *Adapter) record(ctx context.Context, eventType string, payload map[string]interface{}) {
	if a.events == nil {
		return
	}
	if err := a.events.Record(ctx, eventType, payload, client.CorrelationID(ctx)); err != nil {
		a.logger.Error("recording business event failed",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// connectionMessage folds any platform failure into a user-safe message
// while keeping the underlying detail for operators.
func connectionMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return "unable to reach the enrollment platform: " + apiErr.Message
	}
	return "unable to reach the enrollment platform: " + err.Error()
}

// confirmationFrom reads the platform's confirmation identifier, checking
// both the wrapped and unwrapped response shapes.
func confirmationFrom(doc *xmltree.Document) string {
	for _, path := range [][]string{
		{"message", "confirmNo"}, {"confirmNo"},
		{"message", "jobNo"}, {"jobNo"},
	} {
		if v := strings.TrimSpace(doc.Text(path...)); v != "" {
			return v
		}
	}
	return ""
}

// accountIdentifier pulls whichever account parameter the mapper resolved.
func accountIdentifier(p map[string]string) string {
	if v := p[params.ParamAccountStandard]; v != "" {
		return v
	}
	return p[params.ParamAccountAlternate]
}
