// Package result provides typed, read-only views over validated platform
// responses. Each result is built once from a parsed document and encodes
// the platform's business rules so callers never touch raw trees.
package result

import (
	"fmt"
	"strings"

	"github.com/gridpulse/go-dre/internal/utility/xmltree"
)

// Enrollment-status letter codes returned by the validation endpoint.
const (
	EnrStatusAlreadyEnrolled = "A"
	EnrStatusPending         = "P"
	EnrStatusSuspended       = "S"
	EnrStatusNotEnrolled     = "N"
	EnrStatusEligible        = "E"
)

// Error codes with dedicated handling. "03" and enrollment status "A" are
// synonyms for already-enrolled; the platform emits either independently
// depending on the endpoint, so both are honored.
const (
	ErrCodeAlreadyEnrolled  = "03"
	ErrCodeMedicalCondition = "21"
)

// errorMessages maps known platform error codes to user-facing messages.
var errorMessages = map[string]string{
	"01":                   "The account number provided could not be found.",
	"02":                   "This account is not currently active.",
	ErrCodeAlreadyEnrolled: "This account is already enrolled in the program.",
	"05":                   "The service address on file does not qualify for this program.",
	"07":                   "This rate class is not eligible for enrollment.",
	"09":                   "A pending work order already exists for this account.",
}

const (
	msgNonResidential = "This program is limited to residential accounts."
	msgPending        = "An enrollment for this account is already pending."
	msgSuspended      = "This account's program participation is suspended. Please contact customer support."
)

// ValidationResult is the interpreted outcome of an account validation
// call. Immutable after construction.
type ValidationResult struct {
	valid              bool
	errorCode          string
	errorMessage       string
	alreadyEnrolled    bool
	hasMedical         bool
	requiresMedicalAck bool

	firstName string
	lastName  string
	email     string
	street    string
	city      string
	state     string
	zip       string
}

// NewValidation interprets a validated account-validation document. The
// checks run in a fixed precedence: already-enrolled short-circuits before
// generic error mapping, and the medical-condition code must win over any
// generic error signal so the acknowledgment step is never masked.
func NewValidation(doc *xmltree.Document) *ValidationResult {
	msg := messageNode(doc)

	r := &ValidationResult{
		firstName: msg.ChildText("fname"),
		lastName:  msg.ChildText("lname"),
		email:     msg.ChildText("emailAddr"),
	}
	if addr := msg.Child("address"); addr != nil {
		r.street = addr.ChildText("street")
		r.city = addr.ChildText("city")
		r.state = addr.ChildText("state")
		r.zip = addr.ChildText("zip")
	}

	enrStatus := strings.ToUpper(strings.TrimSpace(msg.ChildText("enrStatus")))
	errCode := strings.TrimSpace(msg.ChildText("errCode"))
	r.errorCode = errCode

	// 1. Already enrolled, by either signal.
	if enrStatus == EnrStatusAlreadyEnrolled || errCode == ErrCodeAlreadyEnrolled {
		r.alreadyEnrolled = true
		r.errorMessage = errorMessages[ErrCodeAlreadyEnrolled]
		return r
	}

	// 2. Medical condition: the account is enrollable, but the applicant
	// must acknowledge interruption risk first.
	if errCode == ErrCodeMedicalCondition {
		r.valid = true
		r.hasMedical = true
		r.requiresMedicalAck = true
		return r
	}

	// 3. Any other non-empty error code.
	if errCode != "" {
		if m, ok := errorMessages[errCode]; ok {
			r.errorMessage = m
		} else {
			r.errorMessage = fmt.Sprintf("We were unable to process your enrollment (code %s). Please contact customer support.", errCode)
		}
		return r
	}

	// 4. Non-residential participant types are rejected outright.
	if pt := strings.ToUpper(strings.TrimSpace(msg.ChildText("partType"))); pt != "" && pt != "R" {
		r.errorMessage = msgNonResidential
		return r
	}

	// 5. Remaining enrollment-status letters.
	switch enrStatus {
	case EnrStatusPending:
		r.errorMessage = msgPending
		return r
	case EnrStatusSuspended:
		r.errorMessage = msgSuspended
		return r
	case EnrStatusNotEnrolled, EnrStatusEligible:
		r.valid = true
		return r
	}

	// 6. Fallback on the explicit status or message type.
	status := strings.ToLower(strings.TrimSpace(msg.ChildText("status")))
	msgType := strings.ToLower(strings.TrimSpace(msg.ChildText("msgType")))
	r.valid = status == "valid" || msgType == "prospect"
	return r
}

// IsValid reports whether the account can proceed with enrollment.
func (r *ValidationResult) IsValid() bool { return r.valid }

// ErrorCode returns the raw platform error code, if any.
func (r *ValidationResult) ErrorCode() string { return r.errorCode }

// ErrorMessage returns the user-facing rejection message, if any.
func (r *ValidationResult) ErrorMessage() string { return r.errorMessage }

// AlreadyEnrolled reports the explicit already-enrolled signal.
func (r *ValidationResult) AlreadyEnrolled() bool { return r.alreadyEnrolled }

// HasMedicalCondition reports the medical-condition flag on the account.
func (r *ValidationResult) HasMedicalCondition() bool { return r.hasMedical }

// RequiresMedicalAcknowledgment reports whether the applicant must
// acknowledge service-interruption risk before enrolling.
func (r *ValidationResult) RequiresMedicalAcknowledgment() bool { return r.requiresMedicalAck }

// Customer and service-address accessors.
func (r *ValidationResult) FirstName() string { return r.firstName }
func (r *ValidationResult) LastName() string  { return r.lastName }
func (r *ValidationResult) Email() string     { return r.email }
func (r *ValidationResult) Street() string    { return r.street }
func (r *ValidationResult) City() string      { return r.city }
func (r *ValidationResult) State() string     { return r.state }
func (r *ValidationResult) Zip() string       { return r.zip }

// messageNode unwraps the conventional message wrapper, tolerating
// endpoints that omit it.
func messageNode(doc *xmltree.Document) *xmltree.Node {
	if msg := doc.Lookup("message"); msg != nil {
		return msg
	}
	return doc.Root()
}
