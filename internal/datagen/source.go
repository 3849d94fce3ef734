package datagen

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"

	"github.com/brianvoe/gofakeit/v7"
)

// Source is a seeded randomness source for format-aware values. Each
// (seedKey, field) pair gets its own faker derived from the seed, so the
// value of one field never depends on which fields were generated before it.
//
// A Source is stateless after construction and safe for concurrent use.
type Source struct {
	seed int64
}

// NewSource returns a Source bound to seed.
func NewSource(seed int64) *Source {
	return &Source{seed: seed}
}

// Seed returns the bound seed.
func (s *Source) Seed() int64 {
	return s.seed
}

// formatFunctions maps format hints to faker functions.
var formatFunctions = map[string]func(*gofakeit.Faker) any{
	"email":    func(f *gofakeit.Faker) any { return f.Email() },
	"hostname": func(f *gofakeit.Faker) any { return f.DomainName() },
	"uri":      func(f *gofakeit.Faker) any { return f.URL() },
	"url":      func(f *gofakeit.Faker) any { return f.URL() },
	"ipv4":     func(f *gofakeit.Faker) any { return f.IPv4Address() },
	"ipv6":     func(f *gofakeit.Faker) any { return f.IPv6Address() },
	"date":     func(f *gofakeit.Faker) any { return f.Date().Format("2006-01-02") },
	"phone":    func(f *gofakeit.Faker) any { return f.Phone() },
	"password": func(f *gofakeit.Faker) any { return f.Password(true, true, true, false, false, 16) },
}

// Format returns a realistic value for a string format hint. ok is false
// when the format has no faker mapping.
func (s *Source) Format(seedKey, field, format string) (value any, ok bool) {
	fn, ok := formatFunctions[format]
	if !ok {
		return nil, false
	}
	return fn(s.faker(seedKey, field)), true
}

// SupportedFormats returns the format hints Format understands.
func SupportedFormats() []string {
	formats := make([]string, 0, len(formatFunctions))
	for f := range formatFunctions {
		formats = append(formats, f)
	}
	return formats
}

func (s *Source) faker(seedKey, field string) *gofakeit.Faker {
	sum := sha256.Sum256([]byte(strconv.FormatInt(s.seed, 10) + ":" + seedKey + ":" + field))
	return gofakeit.New(binary.BigEndian.Uint64(sum[:8]))
}
