package resolution

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/erp/tools/testgen/internal/openapi"
)

func TestEngine_Resolve_NestedEnums(t *testing.T) {
	got, err := NewEngine().ResolveStrict(&Request{
		Endpoint: "/tickets",
		Method:   "POST",
		Document: loadDoc(t),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"status":    "open",
		"owner":     map[string]any{"kind": "user", "name": "name_85"},
		"tags":      []any{"red"},
		"reviewers": []any{map[string]any{"level": 1}},
	}, got.Body)

	assert.Equal(t, map[string]Strategy{
		"status":    StrategyEnumPick,
		"owner":     StrategyGenerate,
		"tags":      StrategyDefault,
		"reviewers": StrategyDefault,
	}, got.Metadata.Strategies)
}

func TestMatchEnum_NullableRef(t *testing.T) {
	nullable := &openapi.Schema{AnyOf: []*openapi.Schema{
		{Type: "string", Enum: []any{"open", "closed"}},
		{Type: "null"},
	}}
	assert.True(t, matchEnum(nil, "status", nullable))
	assert.False(t, matchEnum(nil, "note", &openapi.Schema{AnyOf: []*openapi.Schema{{Type: "null"}, {Type: "string"}}}))
}

func TestValidator_NestedEnums(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		wantField  string
		wantValue  any
		wantReject bool
	}{
		{
			name: "all members",
			body: map[string]any{
				"status":    "closed",
				"owner":     map[string]any{"kind": "team"},
				"tags":      []any{"blue", "red"},
				"reviewers": []any{map[string]any{"level": float64(3)}},
			},
		},
		{
			name: "null through nullable anyOf",
			body: map[string]any{"status": nil, "owner": map[string]any{"kind": "user"}},
		},
		{
			name:       "anyOf branch enum",
			body:       map[string]any{"status": "pending", "owner": map[string]any{"kind": "user"}},
			wantReject: true,
			wantField:  "status",
			wantValue:  "pending",
		},
		{
			name:       "nested object member",
			body:       map[string]any{"status": "open", "owner": map[string]any{"kind": "robot"}},
			wantReject: true,
			wantField:  "owner.kind",
			wantValue:  "robot",
		},
		{
			name: "array item",
			body: map[string]any{
				"status": "open",
				"owner":  map[string]any{"kind": "user"},
				"tags":   []any{"red", "green"},
			},
			wantReject: true,
			wantField:  "tags[1]",
			wantValue:  "green",
		},
		{
			name: "object inside array",
			body: map[string]any{
				"status":    "open",
				"owner":     map[string]any{"kind": "user"},
				"reviewers": []any{map[string]any{"level": 9}},
			},
			wantReject: true,
			wantField:  "reviewers[0].level",
			wantValue:  9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := analyzed(t, &Request{Endpoint: "/tickets", Method: "POST"})
			c.Body = tt.body

			err := Validator{}.Apply(c)
			if !tt.wantReject {
				assert.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrInvalidEnumValue)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, tt.wantValue, verr.Value)
		})
	}
}

// assertEnumMembers walks value alongside schema and fails for every
// enum-constrained node whose value is not a declared member.
func assertEnumMembers(t *testing.T, path string, schema *openapi.Schema, value any) {
	t.Helper()
	schema = schema.FirstConcrete()
	if schema == nil {
		return
	}
	if schema.HasEnum() {
		assert.Contains(t, schema.Enum, value, "%s is not an enum member", path)
		return
	}
	switch v := value.(type) {
	case map[string]any:
		for name, member := range v {
			if prop := schema.Property(name); prop != nil {
				assertEnumMembers(t, path+"."+name, prop, member)
			}
		}
	case []any:
		for i, item := range v {
			assertEnumMembers(t, fmt.Sprintf("%s[%d]", path, i), schema.Items, item)
		}
	}
}

func TestEngine_Resolve_EnumConformance(t *testing.T) {
	doc := loadDoc(t)
	e := NewEngine()

	operations := []struct{ method, path string }{
		{"POST", "/projects"},
		{"POST", "/tickets"},
		{"GET", "/projects"},
	}
	seeds := []*int64{nil, Seed(1), Seed(7), Seed(42)}
	modes := map[string]func(*Request) *ResolvedRequest{
		"pipeline": e.Resolve,
		"fallback": func(req *Request) *ResolvedRequest { return e.fallback(req, errors.New("forced")) },
	}

	for _, operation := range operations {
		op, err := doc.Operation(operation.path, operation.method)
		require.NoError(t, err)

		for mode, resolve := range modes {
			for _, seed := range seeds {
				name := fmt.Sprintf("%s %s/%s/seed=%v", operation.method, operation.path, mode, seed)
				if seed != nil {
					name = fmt.Sprintf("%s %s/%s/seed=%d", operation.method, operation.path, mode, *seed)
				}

				t.Run(name, func(t *testing.T) {
					got := resolve(&Request{
						Endpoint: operation.path,
						Method:   operation.method,
						Document: doc,
						Seed:     seed,
					})

					for field, value := range got.Body {
						assertEnumMembers(t, field, op.RequestBody.Property(field), value)
					}
					for name, value := range got.QueryParams {
						assertEnumMembers(t, name, op.ParametersIn(openapi.LocationQuery)[name].Schema, value)
					}
				})
			}
		}
	}
}
