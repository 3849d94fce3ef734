package resolution

import (
	"github.com/example/erp/tools/testgen/internal/openapi"
)

// Strategy is the rule that produces one body field's value.
type Strategy string

// Strategies in priority order.
const (
	StrategyIntentOverride Strategy = "INTENT_OVERRIDE"
	StrategyReuse          Strategy = "REUSE"
	StrategyEnumPick       Strategy = "ENUM_PICK"
	StrategyGenerate       Strategy = "GENERATE"
	StrategyDefault        Strategy = "DEFAULT"
)

// Rule selects Strategy for a field when Match returns true.
type Rule struct {
	Strategy Strategy
	Match    func(c *Context, field string, schema *openapi.Schema) bool
}

// DefaultRules is the fixed priority chain. The first matching rule wins;
// StrategyDefault applies when none match.
var DefaultRules = []Rule{
	{Strategy: StrategyIntentOverride, Match: matchIntent},
	{Strategy: StrategyReuse, Match: matchReuse},
	{Strategy: StrategyEnumPick, Match: matchEnum},
	{Strategy: StrategyGenerate, Match: matchRequired},
}

func matchIntent(c *Context, field string, _ *openapi.Schema) bool {
	_, ok := c.Intent[field]
	return ok
}

func matchReuse(c *Context, field string, _ *openapi.Schema) bool {
	return c.Dependencies[field].Source == SourceExecutionMemory
}

// matchEnum also sees through nullable anyOf wrappers.
func matchEnum(_ *Context, _ string, schema *openapi.Schema) bool {
	return schema.FirstConcrete().HasEnum()
}

func matchRequired(c *Context, field string, _ *openapi.Schema) bool {
	for _, r := range c.RequiredFields {
		if r == field {
			return true
		}
	}
	return false
}

// StrategySelector assigns exactly one strategy to every top-level body field.
type StrategySelector struct {
	Rules []Rule
}

// NewStrategySelector returns a selector using DefaultRules.
func NewStrategySelector() *StrategySelector {
	return &StrategySelector{Rules: DefaultRules}
}

func (s *StrategySelector) Name() string { return "strategy" }

func (s *StrategySelector) Apply(c *Context) error {
	for _, field := range c.RequestSchema.PropertyNames() {
		c.Strategies[field] = s.Select(c, field, c.fieldSchema(field))
	}
	return nil
}

// Select returns the strategy of the first rule matching field.
func (s *StrategySelector) Select(c *Context, field string, schema *openapi.Schema) Strategy {
	for _, rule := range s.Rules {
		if rule.Match(c, field, schema) {
			return rule.Strategy
		}
	}
	return StrategyDefault
}
