package result

import (
	"strings"

	"github.com/gridpulse/go-dre/internal/utility/xmltree"
)

// BookingResult is the interpreted outcome of an appointment booking call
// that came back as XML rather than a bare confirmation number.
type BookingResult struct {
	confirmed    bool
	confirmation string
	errorCode    string
	errorMessage string
}

// NewBooking interprets a validated booking document. A confirmation
// number confirms the booking outright; otherwise the status field and
// error code decide.
func NewBooking(doc *xmltree.Document) *BookingResult {
	msg := messageNode(doc)

	r := &BookingResult{
		confirmation: strings.TrimSpace(msg.ChildText("confirmNo")),
		errorCode:    strings.TrimSpace(msg.ChildText("errCode")),
	}
	if r.confirmation != "" {
		r.confirmed = true
		return r
	}

	if strings.EqualFold(strings.TrimSpace(msg.ChildText("status")), "booked") {
		r.confirmed = true
		return r
	}

	if m := strings.TrimSpace(msg.ChildText("errMsg")); m != "" {
		r.errorMessage = m
	} else if m, ok := errorMessages[r.errorCode]; ok {
		r.errorMessage = m
	} else {
		r.errorMessage = "The selected appointment slot could not be booked. Please choose another time."
	}
	return r
}

// Confirmed reports whether the appointment was booked.
func (r *BookingResult) Confirmed() bool { return r.confirmed }

// ConfirmationNumber returns the platform confirmation, if any.
func (r *BookingResult) ConfirmationNumber() string { return r.confirmation }

// ErrorCode returns the raw platform error code, if any.
func (r *BookingResult) ErrorCode() string { return r.errorCode }

// ErrorMessage returns the user-facing rejection message, if any.
func (r *BookingResult) ErrorMessage() string { return r.errorMessage }
