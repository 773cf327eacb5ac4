package params

import (
	"strings"
)

// MissingFieldsError reports every required platform parameter still absent
// or empty after mapping and defaulting.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// MapEnrollment translates internal enrollment form fields into the
// enrollment endpoint's parameter set.
func MapEnrollment(fields map[string]string) (map[string]string, error) {
	out := applyRules(enrollmentRules, fields)

	resolveAccount(fields["account_number"], out)

	out["contractNo"] = ContractCode(fields["participation_level"], fields["device_category"])

	applyOwnership(fields, out)

	if flag := mustScheduleFlag(fields); flag != "" {
		out["mustSched"] = flag
	}

	for k, v := range constantEnrollmentParams {
		out[k] = v
	}

	if missing := missingRequired(requiredEnrollment, out); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	return out, nil
}

// MapValidation translates internal fields into the validation endpoint's
// parameter set. Validation only needs the account identifier and the
// service zip code.
func MapValidation(fields map[string]string) (map[string]string, error) {
	out := make(map[string]string, 2)
	if zip := digitsOnly(fields["zip"]); zip != "" {
		out["svcZip"] = zip
	}

	resolveAccount(fields["account_number"], out)

	if missing := missingRequired(requiredScheduling, out); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	return out, nil
}

// MapScheduling translates internal scheduling fields into the scheduling
// endpoint's parameter set.
func MapScheduling(fields map[string]string) (map[string]string, error) {
	out := applyRules(schedulingRules, fields)

	resolveAccount(fields["account_number"], out)

	if missing := missingRequired(requiredScheduling, out); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	return out, nil
}

// applyRules performs the table-driven rename with per-field transforms.
// First non-empty writer wins for parameters with multiple sources.
func applyRules(rules []rule, fields map[string]string) map[string]string {
	out := make(map[string]string, len(rules))
	for _, r := range rules {
		if out[r.param] != "" {
			continue
		}
		raw, ok := fields[r.field]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if v := applyTransform(r, raw); v != "" {
			out[r.param] = v
		}
	}
	return out
}

// resolveAccount routes the account identifier between the platform's two
// address spaces. A leading X (either case) marks the alternate space: the
// prefix is stripped, digits go to caNo, and the standard parameter is
// never populated. All other identifiers strip to digits in utility_no.
func resolveAccount(raw string, out map[string]string) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return
	}
	if id[0] == 'x' || id[0] == 'X' {
		if digits := digitsOnly(id[1:]); digits != "" {
			out[ParamAccountAlternate] = digits
		}
		delete(out, ParamAccountStandard)
		return
	}
	if digits := digitsOnly(id); digits != "" {
		out[ParamAccountStandard] = digits
	}
	delete(out, ParamAccountAlternate)
}

// applyOwnership normalizes ownership to the platform's own/lease enum and,
// for leased service addresses without landlord contact details, synthesizes
// placeholders from the applicant so the endpoint accepts the submission.
func applyOwnership(fields, out map[string]string) {
	switch strings.ToLower(strings.TrimSpace(fields["ownership"])) {
	case "rent", "rented", "lease", "leased", "tenant":
		out["ownRent"] = "lease"
	default:
		out["ownRent"] = "own"
		return
	}

	if out["llName"] == "" {
		name := strings.TrimSpace(strings.TrimSpace(fields["first_name"]) + " " + strings.TrimSpace(fields["last_name"]))
		if name != "" {
			out["llName"] = name
		}
	}
	if out["llPhone"] == "" {
		out["llPhone"] = digitsOnly(fields["phone"])
	}
}

// mustScheduleFlag derives the outdoor-switch scheduling flag. Switch
// installs need a truck roll unless the applicant reported unrestricted
// equipment access and no appointment preference.
func mustScheduleFlag(fields map[string]string) string {
	if strings.ToLower(strings.TrimSpace(fields["device_category"])) != "dcu" {
		return ""
	}
	access := strings.ToLower(strings.TrimSpace(fields["equipment_access"]))
	pref := strings.ToLower(strings.TrimSpace(fields["install_preference"]))
	if access == "unrestricted" && pref != "appointment" {
		return "N"
	}
	return "Y"
}

// missingRequired checks the required set, treating the standard account
// parameter as satisfied by either identifier space.
func missingRequired(required []string, out map[string]string) []string {
	var missing []string
	for _, p := range required {
		if p == ParamAccountStandard {
			if out[ParamAccountStandard] == "" && out[ParamAccountAlternate] == "" {
				missing = append(missing, p)
			}
			continue
		}
		if out[p] == "" {
			missing = append(missing, p)
		}
	}
	return missing
}
