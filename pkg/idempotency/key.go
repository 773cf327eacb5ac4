package idempotency

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// keyNamespace scopes submission keys to the enrollment gateway. Fixed so
// every instance derives identical keys for identical submissions.
var keyNamespace = uuid.MustParse("9b1f4a52-7c3e-4d8a-b6e1-2f0c5d9a8e31")

// GenerateKey derives a deterministic submission key from the account
// identifier, program code, and submission time bucketed to the minute.
// Rapid duplicate submissions for the same account and program collapse to
// the same key; submissions a minute apart are distinct on purpose, since
// a deliberate resubmit after a failure must not be swallowed.
func GenerateKey(account, program string, at time.Time) string {
	seed := strings.Join([]string{
		strings.TrimSpace(account),
		strings.ToUpper(strings.TrimSpace(program)),
		at.UTC().Truncate(time.Minute).Format(time.RFC3339),
	}, "|")
	return uuid.NewSHA1(keyNamespace, []byte(seed)).String()
}

// KeyDetails returns the seed components for audit records.
func KeyDetails(account, program string, at time.Time) map[string]string {
	return map[string]string{
		"account": strings.TrimSpace(account),
		"program": strings.ToUpper(strings.TrimSpace(program)),
		"bucket":  at.UTC().Truncate(time.Minute).Format(time.RFC3339),
	}
}
