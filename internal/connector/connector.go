// Package connector exposes the enrollment platform integration behind a
// generic connector contract. The form side of the system only ever sees
// these typed results; platform errors never cross the boundary as raw
// failures.
package connector

import "context"

// Failure codes carried on typed results.
const (
	ErrCodeConnection        = "connection_error"
	ErrCodeMissingFields     = "missing_fields"
	ErrCodeUntrustedResponse = "untrusted_response"
)

// Feature identifies an optional connector capability.
type Feature string

const (
	FeatureAccountValidation Feature = "account_validation"
	FeatureEnrollment        Feature = "enrollment"
	FeatureScheduling        Feature = "scheduling"
	FeatureBooking           Feature = "booking"
)

// ConfigField describes one connector configuration input for the admin
// configuration surface.
type ConfigField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Secret   bool   `json:"secret"`
}

// Preset is the static configuration bundle for one served utility
// program.
type Preset struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	ProgramCode         string   `json:"program_code"`
	ParticipationLevels []string `json:"participation_levels"`
	DeviceCategories    []string `json:"device_categories"`
	RegionHint          string   `json:"region_hint"`
}

// Customer is the platform's view of the account holder.
type Customer struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Street    string `json:"street,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
}

// ValidateAccountResult is the typed outcome of an account validation.
type ValidateAccountResult struct {
	Success                       bool     `json:"success"`
	ErrorCode                     string   `json:"error_code,omitempty"`
	ErrorMessage                  string   `json:"error_message,omitempty"`
	AlreadyEnrolled               bool     `json:"already_enrolled,omitempty"`
	HasMedicalCondition           bool     `json:"has_medical_condition,omitempty"`
	RequiresMedicalAcknowledgment bool     `json:"requires_medical_acknowledgment,omitempty"`
	Customer                      Customer `json:"customer"`
}

// SubmitEnrollmentResult is the typed outcome of an enrollment submission.
type SubmitEnrollmentResult struct {
	Success        bool   `json:"success"`
	ConfirmationID string `json:"confirmation_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// SlotDay is one bookable day with its canonical time buckets.
type SlotDay struct {
	Date    string              `json:"date"`
	Buckets map[string]SlotInfo `json:"buckets"`
}

// SlotInfo mirrors one canonical bucket's availability.
type SlotInfo struct {
	Available bool `json:"available"`
	Capacity  int  `json:"capacity"`
}

// EquipmentSummary aggregates the account's demand-response equipment.
type EquipmentSummary struct {
	ACOnly   int `json:"ac_only"`
	HeatOnly int `json:"heat_only"`
	Combo    int `json:"combo"`
	DCU      int `json:"dcu"`
}

// ScheduleSlotsResult is the typed outcome of a slot lookup.
type ScheduleSlotsResult struct {
	Success      bool             `json:"success"`
	Region       string           `json:"region,omitempty"`
	JobReference string           `json:"job_reference,omitempty"`
	Days         []SlotDay        `json:"days"`
	Equipment    EquipmentSummary `json:"equipment"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// SlotSelection identifies the day and canonical bucket being booked.
type SlotSelection struct {
	Date   string `json:"date"`
	Bucket string `json:"bucket"`
}

// BookAppointmentResult is the typed outcome of an appointment booking.
type BookAppointmentResult struct {
	Success            bool   `json:"success"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
	ErrorCode          string `json:"error_code,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// TestConnectionResult is the typed outcome of a connectivity check.
type TestConnectionResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	LatencyMS int64  `json:"latency_ms"`
}

// Connector is the generic contract the form side programs against.
type Connector interface {
	ID() string
	Name() string
	ConfigFields() []ConfigField
	SupportedFeatures() []Feature
	Presets() []Preset

	TestConnection(ctx context.Context) TestConnectionResult
	ValidateAccount(ctx context.Context, fields map[string]string) ValidateAccountResult
	SubmitEnrollment(ctx context.Context, fields map[string]string) SubmitEnrollmentResult
	GetScheduleSlots(ctx context.Context, fields map[string]string, minCapacity int) ScheduleSlotsResult
	BookAppointment(ctx context.Context, fields map[string]string, slot SlotSelection) BookAppointmentResult
}
