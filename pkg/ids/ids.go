package ids

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// New returns a UUIDv7 per RFC 9562 (time-ordered, millisecond precision).
// Suites, entries, and ledger records sort by creation time when keyed on it.
func New() (uuid.UUID, error) {
	var b [16]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return uuid.Nil, err
	}

	ms := uint64(time.Now().UnixMilli())
	b[0] = byte(ms >> 40)
	b[1] = byte(ms >> 32)
	b[2] = byte(ms >> 24)
	b[3] = byte(ms >> 16)
	b[4] = byte(ms >> 8)
	b[5] = byte(ms)

	// Version 7 (0b0111)
	b[6] = (b[6] & 0x0f) | 0x70
	// Variant RFC 4122 (0b10xxxxxx)
	b[8] = (b[8] & 0x3f) | 0x80

	return uuid.FromBytes(b[:])
}

// NewString returns a UUIDv7 string.
func NewString() (string, error) {
	u, err := New()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

var suiteRecordNamespace = uuid.Must(uuid.Parse("3f8a51fd-20c6-4be7-9c16-6a4f60f0b7d1"))
var ledgerRecordNamespace = uuid.Must(uuid.Parse("b1a2c7e9-4d35-4f0a-8e2b-52b77c3d9a04"))

// SuiteRecordID derives a stable, rerunnable ID for a suite-owned record so a
// retried persist hits the idempotency path instead of a unique violation.
func SuiteRecordID(tenantID string, entityID string, suiteVersion int, recordKind string, recordKey string) string {
	name := fmt.Sprintf("suite.%s:%s:%s:%d:%s", recordKind, tenantID, entityID, suiteVersion, recordKey)
	return uuid.NewSHA1(suiteRecordNamespace, []byte(name)).String()
}

// LedgerEntryID derives a stable ID for an applicability entry written by a
// given suite generation run.
func LedgerEntryID(tenantID string, entityID string, suiteVersion int, controlCode string) string {
	name := fmt.Sprintf("applicability.entry:%s:%s:%d:%s", tenantID, entityID, suiteVersion, controlCode)
	return uuid.NewSHA1(ledgerRecordNamespace, []byte(name)).String()
}
