package response

import (
	"strings"
	"testing"

	"github.com/gridpulse/go-dre/internal/utility/xmltree"
)

func mustParse(t *testing.T, raw string) *xmltree.Document {
	t.Helper()
	doc, err := xmltree.Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

func TestValidateCleanValidationResponse(t *testing.T) {
	doc := mustParse(t, `<message>
		<status>valid</status>
		<fname>Jordan</fname>
		<lname>Reyes</lname>
		<emailAddr>jordan@example.com</emailAddr>
		<address><street>12 Grid Ln</street><city>Dover</city><state>DE</state><zip>19901</zip></address>
	</message>`)

	res := Validate(KindValidation, doc)
	if !res.OK {
		t.Fatalf("clean response rejected: %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
}

func TestValidateRejectsXSS(t *testing.T) {
	payloads := []string{
		`<script>alert(1)</script>`,
		`<img src=x onerror=alert(1)>`,
		`javascript:alert(1)`,
		`vbscript:msgbox(1)`,
		`data:text/html;base64,x`,
		`<iframe src="https://evil.example"></iframe>`,
		`<object data="x"></object>`,
		`<embed src="x">`,
	}

	for _, payload := range payloads {
		doc := mustParse(t, `<message><status>valid</status><fname>`+
			escapeForXML(payload)+`</fname></message>`)
		res := Validate(KindValidation, doc)
		if res.OK {
			t.Errorf("payload %q should be rejected", payload)
		}
		if len(res.Errors) == 0 {
			t.Errorf("payload %q: failure must carry at least one error", payload)
		}
	}
}

func TestValidateAcceptsSameResponseWithoutXSS(t *testing.T) {
	doc := mustParse(t, `<message><status>valid</status><fname>Jordan</fname></message>`)
	if res := Validate(KindValidation, doc); !res.OK {
		t.Errorf("sanitized twin of rejected response should pass: %v", res.Errors)
	}
}

func TestValidateLengthCap(t *testing.T) {
	doc := mustParse(t, `<message><status>ok</status><errMsg>`+
		strings.Repeat("a", maxFieldLength+1)+`</errMsg></message>`)
	if res := Validate(KindValidation, doc); res.OK {
		t.Error("over-length field should be rejected")
	}
}

func TestValidateRequiresStatusIndicator(t *testing.T) {
	doc := mustParse(t, `<message><fname>Jordan</fname></message>`)
	res := Validate(KindValidation, doc)
	if res.OK {
		t.Error("response without any status indicator should be rejected")
	}
}

func TestValidateEmptyDocument(t *testing.T) {
	doc, err := xmltree.Parse("")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	res := Validate(KindScheduling, doc)
	if res.OK {
		t.Error("empty document should be rejected")
	}
	if len(res.Errors) == 0 {
		t.Error("failure must populate at least one error")
	}
}

func TestValidateSchedulingShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{
			name: "clean",
			raw: `<message><status>0</status><jobNo>DO5521</jobNo>
				<equipment><unit type="AC1" location="attic" desired="S40"/></equipment>
				<appointments><day date="6/15/2026"><slot time="am" capacity="3"/></day></appointments>
			</message>`,
			ok: true,
		},
		{
			name: "bad slot date",
			raw: `<message><status>0</status>
				<appointments><day date="2026-06-15"><slot time="am" capacity="3"/></day></appointments>
			</message>`,
			ok: false,
		},
		{
			name: "non-numeric capacity",
			raw: `<message><status>0</status>
				<appointments><day date="6/15/2026"><slot time="am" capacity="lots"/></day></appointments>
			</message>`,
			ok: false,
		},
		{
			name: "markup in equipment attribute",
			raw: `<message><status>0</status>
				<equipment><unit type="AC1" location="&lt;b&gt;attic&lt;/b&gt;"/></equipment>
			</message>`,
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(KindScheduling, mustParse(t, tt.raw))
			if res.OK != tt.ok {
				t.Errorf("OK = %v, want %v (errors: %v)", res.OK, tt.ok, res.Errors)
			}
		})
	}
}

func TestValidateBooking(t *testing.T) {
	doc := mustParse(t, `<message><status>0</status><confirmNo>BK10021</confirmNo></message>`)
	if res := Validate(KindBooking, doc); !res.OK {
		t.Errorf("clean booking response rejected: %v", res.Errors)
	}

	doc = mustParse(t, `<message><note>thanks</note></message>`)
	if res := Validate(KindBooking, doc); res.OK {
		t.Error("booking response without indicator should be rejected")
	}
}

func TestScreenText(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"clean confirmation number", "WO-88123", true},
		{"embedded markup", "WO-88123 <b>ok</b>", false},
		{"event handler", "WO-88123 onload=alert(1)", false},
		{"script scheme", "javascript:alert(1)", false},
		{"over length cap", strings.Repeat("W", 10001), false},
		{"at length cap", strings.Repeat("W", 10000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ScreenText("confirmNo", tt.value)
			if res.OK != tt.ok {
				t.Errorf("OK = %v, want %v (errors: %v)", res.OK, tt.ok, res.Errors)
			}
		})
	}
}

// escapeForXML entity-escapes a payload so the parser accepts it while the
// decoded field value still carries the original fragment.
func escapeForXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
