package xmltree

import (
	"errors"
	"strings"
	"testing"
)

func TestParseScalarLeaves(t *testing.T) {
	doc, err := Parse(`<message><status>valid</status><utility_no>12345</utility_no></message>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := doc.Text("message", "status"); got != "valid" {
		t.Errorf("status = %q, want %q", got, "valid")
	}
	if got := doc.Text("message", "utility_no"); got != "12345" {
		t.Errorf("utility_no = %q, want %q", got, "12345")
	}
	if doc.Lookup("message", "status").Kind() != KindScalar {
		t.Error("leaf without attributes should be a scalar")
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		doc, err := Parse(raw)
		if err != nil {
			t.Fatalf("empty input %q should not error: %v", raw, err)
		}
		if !doc.Empty() {
			t.Errorf("empty input %q should produce an empty document", raw)
		}
	}
}

func TestParseDuplicateSiblingsBecomeList(t *testing.T) {
	raw := `<message><equipment>
		<item type="AC1">first</item>
		<item type="HT2">second</item>
		<item type="AC1">third</item>
	</equipment></message>`

	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	items := doc.Lookup("message", "equipment", "item")
	if items.Kind() != KindList {
		t.Fatalf("repeated siblings should collapse into a list, got kind %v", items.Kind())
	}
	if items.Len() != 3 {
		t.Fatalf("item count = %d, want 3", items.Len())
	}

	want := []string{"first", "second", "third"}
	for i, n := range items.Items() {
		if n.Text() != want[i] {
			t.Errorf("item[%d] = %q, want %q", i, n.Text(), want[i])
		}
	}

	if typ, _ := items.Items()[1].Attr("type"); typ != "HT2" {
		t.Errorf("item[1] type attr = %q, want %q", typ, "HT2")
	}
}

func TestParseDuplicatesWithoutValuesOrAttrs(t *testing.T) {
	doc, err := Parse(`<message><slot/><slot/></message>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	slots := doc.Lookup("message", "slot")
	if slots.Kind() != KindList || slots.Len() != 2 {
		t.Errorf("empty duplicate tags still form a list: kind=%v len=%d", slots.Kind(), slots.Len())
	}
}

func TestParseSingleNodeItemsNormalization(t *testing.T) {
	doc, err := Parse(`<message><slot date="6/15/2026">am</slot></message>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	slot := doc.Lookup("message", "slot")
	items := slot.Items()
	if len(items) != 1 {
		t.Fatalf("single node normalizes to one item, got %d", len(items))
	}
	if d, ok := items[0].Attr("date"); !ok || d != "6/15/2026" {
		t.Errorf("date attr = %q, want 6/15/2026", d)
	}
}

func TestParseValuesCollapsesAttributes(t *testing.T) {
	doc, err := ParseValues(`<message><slot date="6/15/2026">am</slot></message>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	slot := doc.Lookup("message", "slot")
	if slot.Kind() != KindScalar {
		t.Errorf("value-only parse should collapse leaves to scalars, got %v", slot.Kind())
	}
	if _, ok := slot.Attr("date"); ok {
		t.Error("attributes should not be captured by ParseValues")
	}
	if slot.Text() != "am" {
		t.Errorf("text = %q, want am", slot.Text())
	}
}

func TestParseMalformedInput(t *testing.T) {
	_, err := Parse("<message><status>ok</message>")
	if err == nil {
		t.Fatal("mismatched tags should fail")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error should be a *ParseError, got %T", err)
	}
	if perr.Line == 0 {
		t.Error("syntax errors should carry a line number")
	}
}

func TestParseDeepNesting(t *testing.T) {
	raw := `<message><customer><address><street>12 Grid Ln</street><city>Dover</city></address></customer></message>`
	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := doc.Text("message", "customer", "address", "city"); got != "Dover" {
		t.Errorf("city = %q, want Dover", got)
	}
}

func TestParseRoundTripValues(t *testing.T) {
	// Leaf values survive a serialize/parse cycle exactly.
	values := map[string]string{
		"first_name": "Ana-Maria",
		"acct":       "00123",
		"email":      "ana@example.com",
	}
	var sb strings.Builder
	sb.WriteString("<message>")
	for k, v := range values {
		sb.WriteString("<" + k + ">" + v + "</" + k + ">")
	}
	sb.WriteString("</message>")

	doc, err := Parse(sb.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	for k, v := range values {
		if got := doc.Text("message", k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}
