package result

import "testing"

func TestNewBookingConfirmationNumber(t *testing.T) {
	doc := parseDoc(t, `<message><status>booked</status><confirmNo>WO-88123</confirmNo></message>`)

	b := NewBooking(doc)
	if !b.Confirmed() {
		t.Fatal("expected confirmed booking")
	}
	if b.ConfirmationNumber() != "WO-88123" {
		t.Errorf("ConfirmationNumber = %q", b.ConfirmationNumber())
	}
}

func TestNewBookingStatusOnly(t *testing.T) {
	doc := parseDoc(t, `<message><status>Booked</status></message>`)

	if b := NewBooking(doc); !b.Confirmed() {
		t.Error("status booked without confirmNo should still confirm")
	}
}

func TestNewBookingPlatformError(t *testing.T) {
	doc := parseDoc(t, `<message><status>failed</status><errCode>09</errCode></message>`)

	b := NewBooking(doc)
	if b.Confirmed() {
		t.Fatal("expected failed booking")
	}
	if b.ErrorCode() != "09" {
		t.Errorf("ErrorCode = %q", b.ErrorCode())
	}
	if b.ErrorMessage() == "" {
		t.Error("expected a user-facing message for a known error code")
	}
}

func TestNewBookingErrMsgWins(t *testing.T) {
	doc := parseDoc(t, `<message><status>failed</status><errMsg>Crew unavailable on that date</errMsg></message>`)

	b := NewBooking(doc)
	if b.Confirmed() {
		t.Fatal("expected failed booking")
	}
	if b.ErrorMessage() != "Crew unavailable on that date" {
		t.Errorf("ErrorMessage = %q", b.ErrorMessage())
	}
}

func TestNewBookingGenericFallback(t *testing.T) {
	doc := parseDoc(t, `<message><status>failed</status></message>`)

	b := NewBooking(doc)
	if b.Confirmed() || b.ErrorMessage() == "" {
		t.Error("unexplained failure should carry the generic retry message")
	}
}
