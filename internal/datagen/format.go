package datagen

import (
	"time"

	"github.com/google/uuid"
)

// Format hints with dedicated generators.
const (
	FormatUUID     = "uuid"
	FormatDateTime = "date-time"
)

// timestampEpoch is the start of the window deterministic timestamps fall in.
var timestampEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

const timestampWindowSeconds = 366 * 24 * 60 * 60

// UUID returns a name-based (SHA-1, DNS namespace) UUID of seedKey + "-" + field.
func UUID(seedKey, field string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(seedKey+"-"+field)).String()
}

// Timestamp returns a reproducible RFC 3339 UTC timestamp within the year
// following 2024-01-01T00:00:00Z.
func Timestamp(seedKey, field string) string {
	offset := hashMod(seedKey, field, timestampWindowSeconds)
	return timestampEpoch.Add(time.Duration(offset) * time.Second).Format(time.RFC3339)
}

// Now returns the current wall-clock time as an RFC 3339 UTC timestamp.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
