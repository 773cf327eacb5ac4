package idempotency

import (
	"testing"
	"time"
)

func TestGenerateKeyDeterministic(t *testing.T) {
	at := time.Date(2026, 6, 15, 14, 32, 45, 0, time.UTC)

	k1 := GenerateKey("4455102", "DR-AC", at)
	k2 := GenerateKey("4455102", "DR-AC", at.Add(10*time.Second))
	if k1 != k2 {
		t.Errorf("keys within the same minute differ: %s vs %s", k1, k2)
	}

	k3 := GenerateKey("4455102", "DR-AC", at.Add(time.Minute))
	if k1 == k3 {
		t.Error("keys a minute apart should differ")
	}
}

func TestGenerateKeyNormalizesInputs(t *testing.T) {
	at := time.Date(2026, 6, 15, 14, 32, 0, 0, time.UTC)

	if GenerateKey(" 4455102 ", "dr-ac", at) != GenerateKey("4455102", "DR-AC", at) {
		t.Error("whitespace and program case should not change the key")
	}
	if GenerateKey("4455102", "DR-AC", at) == GenerateKey("9900871", "DR-AC", at) {
		t.Error("different accounts must produce different keys")
	}
}

func TestGenerateKeyHonorsTimezone(t *testing.T) {
	utc := time.Date(2026, 6, 15, 18, 5, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*3600))

	if GenerateKey("4455102", "DR-AC", utc) != GenerateKey("4455102", "DR-AC", est) {
		t.Error("same instant in different zones must produce the same key")
	}
}

func TestKeyDetails(t *testing.T) {
	at := time.Date(2026, 6, 15, 14, 32, 45, 0, time.UTC)
	d := KeyDetails("4455102", "dr-ac", at)

	if d["program"] != "DR-AC" {
		t.Errorf("program = %q, want DR-AC", d["program"])
	}
	if d["bucket"] != "2026-06-15T14:32:00Z" {
		t.Errorf("bucket = %q", d["bucket"])
	}
}
