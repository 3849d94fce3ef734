package datagen

import (
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedKey(t *testing.T) {
	assert.Equal(t, "TC_001", SeedKey(0))
	assert.Equal(t, "TC_001", SeedKey(1))
	assert.Equal(t, "TC_042", SeedKey(42))
	assert.Equal(t, "TC_1234", SeedKey(1234))
	assert.Equal(t, "TC_N005", SeedKey(-5))
	assert.Equal(t, "TC_N9223372036854775808", SeedKey(math.MinInt64))
}

func TestValue(t *testing.T) {
	tests := []struct {
		field    string
		typeName string
		want     any
	}{
		{"name", TypeString, "name_85"},
		{"count", TypeString, "count_1844"},
		{"count", TypeInteger, 44},
		{"price", TypeInteger, 4},
		{"price", TypeNumber, 70.4},
		{"id", TypeNumber, 11.0},
		{"quantity", TypeNumber, 77.4},
		{"active", TypeBoolean, true},
		{"tags", TypeArray, []any{}},
		{"meta", TypeObject, map[string]any{}},
		{"blob", "binary", nil},
		{"blob", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.typeName, func(t *testing.T) {
			assert.Equal(t, tt.want, Value("TC_001", tt.field, tt.typeName))
		})
	}
}

func TestValue_Deterministic(t *testing.T) {
	for _, typeName := range []string{TypeString, TypeInteger, TypeNumber, TypeBoolean} {
		first := Value("TC_009", "field", typeName)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Value("TC_009", "field", typeName))
		}
	}
	assert.NotEqual(t, Value("TC_001", "name", TypeString), Value("TC_002", "name", TypeString))
}

func TestValue_Ranges(t *testing.T) {
	for _, field := range []string{"a", "b", "c", "d", "e", "f"} {
		n := Value("TC_003", field, TypeInteger).(int)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 100)

		f := Value("TC_003", field, TypeNumber).(float64)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 100.0)
	}
}

func TestUUID(t *testing.T) {
	assert.Equal(t, "64b4b9ac-2687-5220-863b-fbe10d45e78e", UUID("TC_001", "id"))
	assert.Equal(t, "96c8e089-af13-51b4-9949-a7a10361ab87", UUID("TC_001", "project_id"))
	assert.Equal(t, "a2370abf-40bb-5538-b3df-ff26abb85a42", UUID("TC_007", "owner_id"))
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}$`), UUID("TC_002", "anything"))
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "2024-03-28T07:36:17Z", Timestamp("TC_001", "created_at"))

	parsed, err := time.Parse(time.RFC3339, Timestamp("TC_005", "updated_at"))
	require.NoError(t, err)
	assert.False(t, parsed.Before(timestampEpoch))
	assert.True(t, parsed.Before(timestampEpoch.AddDate(1, 0, 1)))
}

func TestNow(t *testing.T) {
	_, err := time.Parse(time.RFC3339, Now())
	assert.NoError(t, err)
}

func TestSource_Format(t *testing.T) {
	src := NewSource(7)
	assert.Equal(t, int64(7), src.Seed())

	t.Run("reproducible", func(t *testing.T) {
		for _, format := range SupportedFormats() {
			first, ok := src.Format("TC_007", "field", format)
			require.True(t, ok, format)
			again, _ := NewSource(7).Format("TC_007", "field", format)
			assert.Equal(t, first, again, format)
		}
	})

	t.Run("order independent", func(t *testing.T) {
		a, _ := src.Format("TC_007", "email", "email")
		_, _ = src.Format("TC_007", "other", "email")
		b, _ := src.Format("TC_007", "email", "email")
		assert.Equal(t, a, b)
	})

	t.Run("email shape", func(t *testing.T) {
		v, ok := src.Format("TC_007", "contact", "email")
		require.True(t, ok)
		assert.Contains(t, v, "@")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, ok := src.Format("TC_007", "field", "uuid")
		assert.False(t, ok)
	})
}
