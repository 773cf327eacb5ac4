// Package params translates the gateway's internal enrollment field set into
// the platform's proprietary parameter names and value encodings. The
// platform predates the gateway by decades; its parameter casing and value
// codes are reproduced here exactly as the enrollment endpoints require them.
package params

import (
	"strconv"
	"strings"
	"unicode"
)

// transform is a per-field value encoding applied during renaming.
type transform int

const (
	transformNone transform = iota
	transformDigits
	transformLowerTrim
	transformUpper
	transformClamp
)

// rule maps one internal field name onto a platform parameter. Several
// internal names may target the same parameter; the first rule with a
// non-empty value wins and later writers are ignored.
type rule struct {
	field     string
	param     string
	transform transform
	clampMin  int
	clampMax  int
}

// enrollmentRules is the versioned enrollment mapping table. Order matters:
// it defines first-writer-wins for parameters with multiple sources.
var enrollmentRules = []rule{
	{field: "first_name", param: "fname", transform: transformNone},
	{field: "last_name", param: "lname", transform: transformNone},
	{field: "email", param: "emailAddr", transform: transformLowerTrim},
	{field: "phone", param: "phone1", transform: transformDigits},
	{field: "mobile_phone", param: "phone1", transform: transformDigits},
	{field: "alt_phone", param: "phone2", transform: transformDigits},
	{field: "street_address", param: "svcAddr", transform: transformNone},
	{field: "service_address", param: "svcAddr", transform: transformNone},
	{field: "unit", param: "svcApt", transform: transformNone},
	{field: "city", param: "svcCity", transform: transformNone},
	{field: "state", param: "svcState", transform: transformUpper},
	{field: "zip", param: "svcZip", transform: transformDigits},
	{field: "landlord_name", param: "llName", transform: transformNone},
	{field: "landlord_phone", param: "llPhone", transform: transformDigits},
	{field: "ac_units", param: "acQty", transform: transformClamp, clampMin: 0, clampMax: 99},
	{field: "promo_code", param: "promo", transform: transformUpper},
}

// schedulingRules is the scheduling-request mapping table.
var schedulingRules = []rule{
	{field: "zip", param: "svcZip", transform: transformDigits},
	{field: "preferred_date", param: "apptDate", transform: transformNone},
	{field: "preferred_time", param: "apptTime", transform: transformLowerTrim},
	{field: "phone", param: "phone1", transform: transformDigits},
	{field: "access_notes", param: "techNote", transform: transformNone},
	{field: "job_reference", param: "jobNo", transform: transformUpper},
}

// Platform parameter names for the two account-identifier address spaces.
const (
	ParamAccountStandard  = "utility_no"
	ParamAccountAlternate = "caNo"
	ParamPassword         = "pswd"
)

// requiredEnrollment lists the parameters the enrollment endpoint rejects
// silently when absent; the mapper enforces them up front instead.
var requiredEnrollment = []string{
	"fname",
	"lname",
	"svcAddr",
	"svcCity",
	"svcState",
	"svcZip",
	"phone1",
	"contractNo",
	ParamAccountStandard,
}

// requiredScheduling lists the parameters the scheduling endpoint requires.
var requiredScheduling = []string{
	"svcZip",
	ParamAccountStandard,
}

// constantEnrollmentParams are static values every enrollment submission
// must carry regardless of form input.
var constantEnrollmentParams = map[string]string{
	"source":   "WEB",
	"progType": "DR",
	"enrType":  "E",
}

// contractCodes maps "<level>%-<device-category>" to the two-digit contract
// code the enrollment endpoint expects. Unmatched combinations fall back to
// the 100% thermostat code.
var contractCodes = map[string]string{
	"100%-thermostat": "09",
	"100%-dcu":        "07",
	"75%-thermostat":  "10",
	"75%-dcu":         "08",
	"50%-thermostat":  "11",
	"50%-dcu":         "12",
}

// defaultContractCode is the 100% participation, primary-device code.
const defaultContractCode = "09"

// ContractCode resolves the platform contract code for a participation
// level (with or without a trailing percent sign) and device category.
func ContractCode(level, category string) string {
	key := strings.TrimSuffix(strings.TrimSpace(level), "%") + "%-" +
		strings.ToLower(strings.TrimSpace(category))
	if code, ok := contractCodes[key]; ok {
		return code
	}
	return defaultContractCode
}

func applyTransform(r rule, value string) string {
	switch r.transform {
	case transformDigits:
		return digitsOnly(value)
	case transformLowerTrim:
		return strings.ToLower(strings.TrimSpace(value))
	case transformUpper:
		return strings.ToUpper(strings.TrimSpace(value))
	case transformClamp:
		return clampNumeric(value, r.clampMin, r.clampMax)
	default:
		return strings.TrimSpace(value)
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clampNumeric(s string, min, max int) string {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return strconv.Itoa(n)
}
