package result

import (
	"strings"
	"unicode"
)

// regionNames maps the job-reference region prefix to a display name.
// The platform only exposes these codes implicitly through the job number.
var regionNames = map[string]string{
	"DO": "Dover",
	"NW": "Newark",
	"WL": "Wilmington",
	"MF": "Milford",
	"SB": "Seaford",
	"GT": "Georgetown",
}

// regionName resolves a region code to its display name. Unknown codes
// pass through verbatim, uppercased.
func regionName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := regionNames[code]; ok {
		return name
	}
	return code
}

// regionPrefix extracts the leading alphabetic run of a job-reference
// identifier ("DO5521" yields "DO").
func regionPrefix(jobRef string) string {
	jobRef = strings.TrimSpace(jobRef)
	for i, r := range jobRef {
		if !unicode.IsLetter(r) {
			return jobRef[:i]
		}
	}
	return jobRef
}
