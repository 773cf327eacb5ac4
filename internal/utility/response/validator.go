// Package response screens parsed platform responses before business logic
// trusts them. The platform is an external system over plain HTTP; every
// payload is treated as hostile until it passes these checks. Validation
// never fails with an error: callers get a call-local Result and must treat
// a false OK as "do not proceed".
package response

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gridpulse/go-dre/internal/utility/xmltree"
)

// Kind selects the shape rules for one response family.
type Kind int

const (
	KindValidation Kind = iota
	KindScheduling
	KindBooking
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindScheduling:
		return "scheduling"
	case KindBooking:
		return "booking"
	default:
		return "unknown"
	}
}

// Result carries the outcome of one validation call. Error state is local
// to the call; concurrent validations never share it.
type Result struct {
	OK     bool
	Errors []string
}

// maxFieldLength caps any single string value from the platform.
const maxFieldLength = 10000

// xssPatterns is the content blacklist applied to every string-bearing
// field. The platform echoes caller-supplied values back in responses, so
// reflected markup has to be caught here.
var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)vbscript\s*:`),
	regexp.MustCompile(`(?i)data\s*:`),
	regexp.MustCompile(`(?i)<\s*(iframe|object|embed)\b`),
}

var (
	slotDatePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	numericPattern  = regexp.MustCompile(`^\d+$`)
)

// String-bearing fields checked per response kind.
var (
	validationFields = []string{
		"msgType", "status", "errCode", "errMsg", "enrStatus", "partType",
		"fname", "lname", "emailAddr", "utility_no", "caNo", "custName",
	}
	addressFields    = []string{"street", "city", "state", "zip"}
	schedulingFields = []string{"status", "jobNo", "region", "district", "office", "errMsg"}
	bookingFields    = []string{"status", "confirmNo", "errMsg"}
)

// Status-indicator fields, at least one of which must be present.
var statusIndicators = map[Kind][]string{
	KindValidation: {"status", "errCode", "enrStatus", "msgType"},
	KindScheduling: {"status", "jobNo", "equipment", "appointments"},
	KindBooking:    {"status", "confirmNo"},
}

// Validate screens a parsed document against the shape and content rules
// for the given response kind.
func Validate(kind Kind, doc *xmltree.Document) Result {
	c := &checker{}

	if doc.Empty() {
		c.fail("%s response is empty", kind)
		return c.result()
	}

	msg := doc.Lookup("message")
	if msg == nil {
		// Some endpoints omit the message wrapper.
		msg = doc.Root()
	}

	c.requireIndicator(kind, msg)

	switch kind {
	case KindValidation:
		c.checkFields(msg, validationFields)
		if addr := msg.Child("address"); addr != nil {
			c.checkFields(addr, addressFields)
		}
	case KindScheduling:
		c.checkFields(msg, schedulingFields)
		c.checkEquipment(msg.Child("equipment"))
		c.checkAppointments(msg.Child("appointments"))
	case KindBooking:
		c.checkFields(msg, bookingFields)
	}

	return c.result()
}

// ScreenText screens a bare text value from the platform with the same
// length cap and content blacklist applied to parsed fields. The booking
// endpoint sometimes answers with a plain confirmation number instead of
// XML; that body gets screened here before anything trusts it.
func ScreenText(field, value string) Result {
	c := &checker{}
	if strings.ContainsAny(value, "<>") {
		c.fail("field %s contains markup", field)
	}
	c.checkValue(field, value)
	return c.result()
}

type checker struct {
	errors []string
}

func (c *checker) fail(format string, args ...interface{}) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *checker) result() Result {
	return Result{OK: len(c.errors) == 0, Errors: c.errors}
}

func (c *checker) requireIndicator(kind Kind, msg *xmltree.Node) {
	for _, name := range statusIndicators[kind] {
		if msg.Has(name) {
			return
		}
	}
	c.fail("%s response has no recognized status indicator", kind)
}

func (c *checker) checkFields(n *xmltree.Node, fields []string) {
	for _, name := range fields {
		child := n.Child(name)
		if child == nil {
			continue
		}
		for _, item := range child.Items() {
			c.checkValue(name, item.Text())
		}
	}
}

func (c *checker) checkValue(field, value string) {
	if value == "" {
		return
	}
	if len(value) > maxFieldLength {
		c.fail("field %s exceeds maximum length", field)
		return
	}
	for _, p := range xssPatterns {
		if p.MatchString(value) {
			c.fail("field %s contains unsafe content", field)
			return
		}
	}
}

// checkEquipment validates the equipment list: attribute values carry
// device codes and install locations and must never contain markup.
func (c *checker) checkEquipment(equipment *xmltree.Node) {
	if equipment == nil {
		return
	}
	for _, unit := range equipment.Child("unit").Items() {
		for name, value := range unit.Attrs() {
			if strings.ContainsAny(value, "<>") {
				c.fail("equipment attribute %s contains markup", name)
				continue
			}
			c.checkValue("equipment."+name, value)
		}
	}
}

// checkAppointments validates the day/slot availability structure: dates
// must be M/D/YYYY and slot capacities numeric.
func (c *checker) checkAppointments(appointments *xmltree.Node) {
	if appointments == nil {
		return
	}
	for _, day := range appointments.Child("day").Items() {
		date, ok := day.Attr("date")
		if !ok || !slotDatePattern.MatchString(date) {
			c.fail("appointment day has invalid date %q", date)
			continue
		}
		for _, slot := range day.Child("slot").Items() {
			if capacity, ok := slot.Attr("capacity"); ok && !numericPattern.MatchString(capacity) {
				c.fail("slot capacity %q on %s is not numeric", capacity, date)
			}
			if label, ok := slot.Attr("time"); ok {
				c.checkValue("slot.time", label)
			}
		}
	}
}
