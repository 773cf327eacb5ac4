package result

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/gridpulse/go-dre/internal/utility/xmltree"
)

// TimeBucket is one of the four canonical day parts.
type TimeBucket string

const (
	BucketAM TimeBucket = "am"
	BucketMD TimeBucket = "md"
	BucketPM TimeBucket = "pm"
	BucketEV TimeBucket = "ev"
)

// CanonicalBuckets lists the buckets in display order.
var CanonicalBuckets = []TimeBucket{BucketAM, BucketMD, BucketPM, BucketEV}

// timeAliases folds the platform's heterogeneous time-of-day labels into
// canonical buckets. Lookup is case-insensitive.
var timeAliases = map[string]TimeBucket{
	"am":        BucketAM,
	"a":         BucketAM,
	"morning":   BucketAM,
	"early":     BucketAM,
	"md":        BucketMD,
	"m":         BucketMD,
	"mid-day":   BucketMD,
	"midday":    BucketMD,
	"noon":      BucketMD,
	"pm":        BucketPM,
	"p":         BucketPM,
	"afternoon": BucketPM,
	"ev":        BucketEV,
	"e":         BucketEV,
	"eve":       BucketEV,
	"evening":   BucketEV,
}

// NormalizeTimeBucket resolves a platform time label to its canonical
// bucket, reporting whether the label was recognized.
func NormalizeTimeBucket(label string) (TimeBucket, bool) {
	b, ok := timeAliases[strings.ToLower(strings.TrimSpace(label))]
	return b, ok
}

// Desired-device codes marking the outdoor-switch (DCU) device class.
var dcuDeviceCodes = map[string]bool{
	"S40": true,
	"S45": true,
}

// EquipmentClass buckets a device by what it conditions.
type EquipmentClass int

const (
	EquipmentAC EquipmentClass = iota
	EquipmentHeat
	EquipmentCombo
)

// EquipmentBucket aggregates one equipment class.
type EquipmentBucket struct {
	Count        int
	LastLocation string
	LastDesired  string
}

// SlotInfo is one canonical bucket's availability on a given day.
type SlotInfo struct {
	Available bool
	Capacity  int
}

// DaySlots is one day's availability across the canonical buckets.
type DaySlots struct {
	Date  time.Time
	Label string // platform-form M/D/YYYY
	Slots map[TimeBucket]SlotInfo
}

// HasAvailability reports whether any canonical bucket is bookable.
func (d DaySlots) HasAvailability() bool {
	for _, s := range d.Slots {
		if s.Available {
			return true
		}
	}
	return false
}

// SchedulingResult is the interpreted outcome of a scheduling call.
// Equipment buckets and slots are populated once at construction.
type SchedulingResult struct {
	buckets  map[EquipmentClass]*EquipmentBucket
	dcuCount int
	slots    []DaySlots
	region   string
	jobRef   string
}

// NewScheduling interprets a validated scheduling document. minCapacity is
// the caller's required minimum: a slot counts as available only when the
// platform reports a positive capacity at or above it.
func NewScheduling(doc *xmltree.Document, minCapacity int) *SchedulingResult {
	if minCapacity < 1 {
		minCapacity = 1
	}
	msg := messageNode(doc)

	r := &SchedulingResult{
		buckets: map[EquipmentClass]*EquipmentBucket{
			EquipmentAC:    {},
			EquipmentHeat:  {},
			EquipmentCombo: {},
		},
		jobRef: msg.ChildText("jobNo"),
	}

	r.classifyEquipment(msg.Child("equipment"))
	r.collectSlots(msg.Child("appointments"), minCapacity)
	r.region = resolveRegion(msg, r.jobRef)

	return r
}

// classifyEquipment walks the unit list (single node or list) and buckets
// each device by its type code.
func (r *SchedulingResult) classifyEquipment(equipment *xmltree.Node) {
	if equipment == nil {
		return
	}
	for _, unit := range equipment.Child("unit").Items() {
		typeCode, _ := unit.Attr("type")
		class, ok := classifyDeviceType(typeCode)
		if !ok {
			continue
		}
		b := r.buckets[class]
		b.Count++
		if loc, ok := unit.Attr("location"); ok {
			b.LastLocation = loc
		}
		if desired, ok := unit.Attr("desired"); ok {
			b.LastDesired = desired
			if dcuDeviceCodes[strings.ToUpper(strings.TrimSpace(desired))] {
				r.dcuCount++
			}
		}
	}
}

// classifyDeviceType maps a platform device-type code onto an equipment
// class by its letter prefix (AC*, HT*, CH*).
func classifyDeviceType(code string) (EquipmentClass, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch {
	case strings.HasPrefix(code, "AC"):
		return EquipmentAC, true
	case strings.HasPrefix(code, "HT"):
		return EquipmentHeat, true
	case strings.HasPrefix(code, "CH"):
		return EquipmentCombo, true
	default:
		return 0, false
	}
}

// collectSlots walks the day list (single node or list), normalizing each
// slot label into its canonical bucket.
func (r *SchedulingResult) collectSlots(appointments *xmltree.Node, minCapacity int) {
	if appointments == nil {
		return
	}
	for _, day := range appointments.Child("day").Items() {
		label, ok := day.Attr("date")
		if !ok {
			continue
		}
		date, err := time.Parse("1/2/2006", label)
		if err != nil {
			continue
		}

		ds := DaySlots{Date: date, Label: label, Slots: map[TimeBucket]SlotInfo{}}
		for _, b := range CanonicalBuckets {
			ds.Slots[b] = SlotInfo{}
		}

		for _, slot := range day.Child("slot").Items() {
			rawTime, _ := slot.Attr("time")
			bucket, ok := NormalizeTimeBucket(rawTime)
			if !ok {
				continue
			}
			capacity := 0
			if c, ok := slot.Attr("capacity"); ok {
				capacity, _ = strconv.Atoi(strings.TrimSpace(c))
			}
			ds.Slots[bucket] = SlotInfo{
				Available: capacity > 0 && capacity >= minCapacity,
				Capacity:  capacity,
			}
		}
		r.slots = append(r.slots, ds)
	}
}

// resolveRegion checks the explicit region fields in order before falling
// back to the job-reference prefix.
func resolveRegion(msg *xmltree.Node, jobRef string) string {
	for _, field := range []string{"region", "district", "office"} {
		if v := strings.TrimSpace(msg.ChildText(field)); v != "" {
			return regionName(v)
		}
	}
	if prefix := regionPrefix(jobRef); prefix != "" {
		return regionName(prefix)
	}
	return ""
}

// Equipment returns the aggregate for one equipment class.
func (r *SchedulingResult) Equipment(class EquipmentClass) EquipmentBucket {
	return *r.buckets[class]
}

// DCUCount returns how many devices carry an outdoor-switch desired code.
func (r *SchedulingResult) DCUCount() int { return r.dcuCount }

// JobReference returns the platform job number, if present.
func (r *SchedulingResult) JobReference() string { return r.jobRef }

// Region returns the resolved service region display name.
func (r *SchedulingResult) Region() string { return r.region }

// Slots returns every parsed day in platform order.
func (r *SchedulingResult) Slots() []DaySlots {
	return r.slots
}

// SlotsForDisplay returns the days offered to applicants: weekends are
// excluded (field crews do not roll trucks on Saturday or Sunday), and a
// day must have at least one available canonical bucket.
func (r *SchedulingResult) SlotsForDisplay() []DaySlots {
	return lo.Filter(r.slots, func(d DaySlots, _ int) bool {
		wd := d.Date.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return false
		}
		return d.HasAvailability()
	})
}
