// Package datagen produces reproducible primitive values for request fields.
// Every value is a pure function of a seed key and a field name, so the same
// test case always receives the same payload across runs and machines.
package datagen

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Type names understood by Value.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// SeedKey returns the case identifier for a seed, e.g. "TC_007".
// A zero seed maps to the first test case. Callers reject negative seeds;
// if one still reaches here it is keyed as "TC_N007" so the key never
// carries a minus sign and stays distinct from its positive counterpart.
func SeedKey(seed int64) string {
	switch {
	case seed == 0:
		seed = 1
	case seed < 0:
		return fmt.Sprintf("TC_N%03d", new(big.Int).Neg(big.NewInt(seed)))
	}
	return fmt.Sprintf("TC_%03d", seed)
}

// Hash returns the SHA-256 of seedKey + ":" + field as a non-negative integer.
func Hash(seedKey, field string) *big.Int {
	sum := sha256.Sum256([]byte(seedKey + ":" + field))
	return new(big.Int).SetBytes(sum[:])
}

// hashMod returns Hash(seedKey, field) % m.
func hashMod(seedKey, field string, m int64) int64 {
	return new(big.Int).Mod(Hash(seedKey, field), big.NewInt(m)).Int64()
}

// Value maps (seedKey, field, typeName) to a reproducible primitive:
//
//	string  -> "{field}_{h % 10000}"
//	integer -> h % 100
//	number  -> round((h % 1000) / 10, 2)
//	boolean -> true
//	array   -> []any{}
//	object  -> map[string]any{}
//
// Any other type name yields nil.
func Value(seedKey, field, typeName string) any {
	switch typeName {
	case TypeString:
		return fmt.Sprintf("%s_%d", field, hashMod(seedKey, field, 10000))
	case TypeInteger:
		return int(hashMod(seedKey, field, 100))
	case TypeNumber:
		return decimal.New(hashMod(seedKey, field, 1000), -1).Round(2).InexactFloat64()
	case TypeBoolean:
		// Constant so that assertions on generated payloads stay stable.
		return true
	case TypeArray:
		return []any{}
	case TypeObject:
		return map[string]any{}
	default:
		return nil
	}
}
