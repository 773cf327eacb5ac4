package connector

import "github.com/samber/lo"

// programPresets are the utility programs the gateway serves today. Each
// preset pins the participation levels and device categories the program's
// contract-code table actually supports.
var programPresets = []Preset{
	{
		ID:                  "de-residential-ac",
		Name:                "Residential AC Cycling",
		ProgramCode:         "DR-AC",
		ParticipationLevels: []string{"100", "75", "50"},
		DeviceCategories:    []string{"thermostat", "dcu"},
		RegionHint:          "DO",
	},
	{
		ID:                  "de-residential-wh",
		Name:                "Residential Water Heating",
		ProgramCode:         "DR-WH",
		ParticipationLevels: []string{"100"},
		DeviceCategories:    []string{"dcu"},
		RegionHint:          "WL",
	},
	{
		ID:                  "de-smart-thermostat",
		Name:                "Smart Thermostat Rewards",
		ProgramCode:         "DR-ST",
		ParticipationLevels: []string{"100", "75"},
		DeviceCategories:    []string{"thermostat"},
		RegionHint:          "NW",
	},
}

// ProgramPresets returns the served program presets.
func ProgramPresets() []Preset {
	out := make([]Preset, len(programPresets))
	copy(out, programPresets)
	return out
}

// PresetByID looks up one preset, reporting whether it exists.
func PresetByID(id string) (Preset, bool) {
	return lo.Find(programPresets, func(p Preset) bool { return p.ID == id })
}
