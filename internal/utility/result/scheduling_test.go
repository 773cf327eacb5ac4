package result

import (
	"testing"
)

func TestSchedulingEquipmentBuckets(t *testing.T) {
	doc := parseDoc(t, `<message><jobNo>DO5521</jobNo><equipment>
		<unit type="AC1" location="attic" desired="T100"/>
		<unit type="AC2" location="garage" desired="S40"/>
		<unit type="HT1" location="basement" desired="T100"/>
		<unit type="CH1" location="closet" desired="S45"/>
		<unit type="XX9" location="roof"/>
	</equipment></message>`)

	r := NewScheduling(doc, 1)

	ac := r.Equipment(EquipmentAC)
	if ac.Count != 2 {
		t.Errorf("AC count = %d, want 2", ac.Count)
	}
	if ac.LastLocation != "garage" || ac.LastDesired != "S40" {
		t.Errorf("AC last-seen = %q/%q, want garage/S40", ac.LastLocation, ac.LastDesired)
	}

	if heat := r.Equipment(EquipmentHeat); heat.Count != 1 || heat.LastLocation != "basement" {
		t.Errorf("heat bucket = %+v", heat)
	}
	if combo := r.Equipment(EquipmentCombo); combo.Count != 1 {
		t.Errorf("combo count = %d, want 1", combo.Count)
	}

	// S40 and S45 both mark the outdoor-switch device class.
	if r.DCUCount() != 2 {
		t.Errorf("DCU count = %d, want 2", r.DCUCount())
	}
}

func TestSchedulingSingleUnitNotWrappedAsList(t *testing.T) {
	doc := parseDoc(t, `<message><equipment>
		<unit type="AC1" location="attic" desired="T100"/>
	</equipment></message>`)

	r := NewScheduling(doc, 1)
	if r.Equipment(EquipmentAC).Count != 1 {
		t.Error("single unwrapped unit must still be classified")
	}
}

func TestTimeBucketAliases(t *testing.T) {
	aliases := map[string]TimeBucket{
		"AM":      BucketAM,
		"morning": BucketAM,
		"Mid-Day": BucketMD,
		"midday":  BucketMD,
		"md":      BucketMD,
		"NOON":    BucketMD,
		"pm":      BucketPM,
		"Evening": BucketEV,
		"ev":      BucketEV,
	}
	for label, want := range aliases {
		got, ok := NormalizeTimeBucket(label)
		if !ok || got != want {
			t.Errorf("NormalizeTimeBucket(%q) = %q (%v), want %q", label, got, ok, want)
		}
	}

	if _, ok := NormalizeTimeBucket("brunch"); ok {
		t.Error("unknown label must not normalize")
	}

	// The two spellings land in the same canonical bucket.
	a, _ := NormalizeTimeBucket("Mid-Day")
	b, _ := NormalizeTimeBucket("md")
	if a != b {
		t.Errorf("Mid-Day normalized to %q but md to %q", a, b)
	}
}

func TestSchedulingSlotAvailability(t *testing.T) {
	doc := parseDoc(t, `<message><appointments>
		<day date="6/15/2026">
			<slot time="am" capacity="3"/>
			<slot time="Mid-Day" capacity="0"/>
			<slot time="pm" capacity="1"/>
		</day>
	</appointments></message>`)

	r := NewScheduling(doc, 2)
	slots := r.Slots()
	if len(slots) != 1 {
		t.Fatalf("day count = %d, want 1", len(slots))
	}

	day := slots[0]
	if !day.Slots[BucketAM].Available {
		t.Error("am capacity 3 with minimum 2 should be available")
	}
	if day.Slots[BucketMD].Available {
		t.Error("zero capacity must never be available")
	}
	if day.Slots[BucketPM].Available {
		t.Error("capacity below the required minimum must not be available")
	}
	if day.Slots[BucketEV].Capacity != 0 || day.Slots[BucketEV].Available {
		t.Error("unreported bucket defaults to unavailable")
	}
}

func TestSlotsForDisplayExcludesWeekends(t *testing.T) {
	// 6/13/2026 is a Saturday, 6/14 a Sunday, 6/15 a Monday.
	doc := parseDoc(t, `<message><appointments>
		<day date="6/13/2026"><slot time="am" capacity="5"/></day>
		<day date="6/14/2026"><slot time="am" capacity="5"/></day>
		<day date="6/15/2026"><slot time="am" capacity="5"/></day>
	</appointments></message>`)

	r := NewScheduling(doc, 1)
	display := r.SlotsForDisplay()
	if len(display) != 1 {
		t.Fatalf("display days = %d, want 1 (weekends excluded despite capacity)", len(display))
	}
	if display[0].Label != "6/15/2026" {
		t.Errorf("remaining day = %s, want 6/15/2026", display[0].Label)
	}
}

func TestSlotsForDisplayRequiresAvailability(t *testing.T) {
	doc := parseDoc(t, `<message><appointments>
		<day date="6/15/2026"><slot time="am" capacity="0"/><slot time="pm" capacity="0"/></day>
		<day date="6/16/2026"><slot time="ev" capacity="2"/></day>
	</appointments></message>`)

	r := NewScheduling(doc, 1)
	display := r.SlotsForDisplay()
	if len(display) != 1 || display[0].Label != "6/16/2026" {
		t.Errorf("display = %v, want only 6/16/2026", displayLabels(display))
	}
}

func TestSchedulingRegionResolution(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"explicit region", `<message><region>WL</region><jobNo>DO5521</jobNo></message>`, "Wilmington"},
		{"district fallback", `<message><district>MF</district></message>`, "Milford"},
		{"office fallback", `<message><office>GT</office></message>`, "Georgetown"},
		{"job prefix fallback", `<message><jobNo>DO5521</jobNo></message>`, "Dover"},
		{"unknown passes through uppercased", `<message><jobNo>zz9001</jobNo></message>`, "ZZ"},
		{"nothing", `<message><status>0</status></message>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewScheduling(parseDoc(t, tt.raw), 1)
			if r.Region() != tt.want {
				t.Errorf("region = %q, want %q", r.Region(), tt.want)
			}
		})
	}
}

func TestSchedulingMalformedDatesSkipped(t *testing.T) {
	doc := parseDoc(t, `<message><appointments>
		<day date="not-a-date"><slot time="am" capacity="5"/></day>
		<day date="6/15/2026"><slot time="am" capacity="5"/></day>
	</appointments></message>`)

	r := NewScheduling(doc, 1)
	if len(r.Slots()) != 1 {
		t.Errorf("unparseable dates must be skipped, got %d days", len(r.Slots()))
	}
}

func displayLabels(days []DaySlots) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Label
	}
	return out
}
