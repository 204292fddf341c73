package events

import (
	"fmt"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindBool
)

// fieldSchema describes validation for a single payload field: required,
// type, and bounded numeric ranges or enumerated string choices, matching
// spec §4.1.
type fieldSchema struct {
	Name     string
	Kind     fieldKind
	Required bool
	Min      *float64
	Max      *float64
	Enum     []string
}

// Schema is the per-event-type definition: the type-specific payload
// fields beyond the base fields every event carries.
type Schema struct {
	Type   Type
	Fields []fieldSchema
	// Lenient is set on every registered type. Validate does not consult
	// it: unknown payload fields (device metadata and the like) are
	// accepted for all event types.
	Lenient bool
}

func numRange(min, max float64) (*float64, *float64) {
	return &min, &max
}

// Registry is the closed map of event_type -> Schema. Adding a type is the
// two-step change the spec calls out: add the entry here, and add the
// matching value to the persistence check constraint (see the
// hand-written CHECK on events.event_type in
// internal/store/migrations/sql/0001_events.sql, which lists the same
// values as AllTypes).
func NewRegistry() map[Type]Schema {
	reg := map[Type]Schema{}
	for _, t := range AllTypes {
		reg[t] = Schema{Type: t, Lenient: true}
	}

	scoreMin, scoreMax := numRange(0, 1_000_000_000)
	durMin, durMax := numRange(0, 86400)
	reg[TypeGameEnded] = Schema{
		Type: TypeGameEnded,
		Fields: []fieldSchema{
			{Name: "score", Kind: kindNumber, Required: true, Min: scoreMin, Max: scoreMax},
			{Name: "duration_seconds", Kind: kindNumber, Required: true, Min: durMin, Max: durMax},
			{Name: "cause_of_death", Kind: kindString, Required: true},
			{Name: "nickname", Kind: kindString, Required: false},
		},
	}

	levelMin, levelMax := numRange(1, 100000)
	durMin2, durMax2 := numRange(0, 86400)
	reg[TypeLevelCompleted] = Schema{
		Type: TypeLevelCompleted,
		Fields: []fieldSchema{
			{Name: "level", Kind: kindNumber, Required: true, Min: levelMin, Max: levelMax},
			{Name: "stars", Kind: kindNumber, Required: false},
			{Name: "duration_seconds", Kind: kindNumber, Required: false, Min: durMin2, Max: durMax2},
		},
	}
	reg[TypeLevelFailed] = Schema{
		Type: TypeLevelFailed,
		Fields: []fieldSchema{
			{Name: "level", Kind: kindNumber, Required: true, Min: levelMin, Max: levelMax},
		},
	}
	reg[TypeLevelStarted] = reg[TypeLevelFailed]
	reg[TypeLevelUnlocked] = reg[TypeLevelFailed]

	amountMin, amountMax := numRange(0, 1_000_000_000)
	currencySchema := Schema{
		Fields: []fieldSchema{
			{Name: "currency", Kind: kindString, Required: true, Enum: []string{"coins", "gems"}},
			{Name: "amount", Kind: kindNumber, Required: true, Min: amountMin, Max: amountMax},
			{Name: "source", Kind: kindString, Required: false},
		},
	}
	reg[TypeCurrencyEarned] = currencySchema
	reg[TypeCurrencySpent] = currencySchema

	priceMin, priceMax := numRange(0, 10000)
	reg[TypePurchaseInitiated] = Schema{
		Fields: []fieldSchema{
			{Name: "product_id", Kind: kindString, Required: true},
		},
	}
	reg[TypePurchaseCompleted] = Schema{
		Fields: []fieldSchema{
			{Name: "product_id", Kind: kindString, Required: true},
			{Name: "price_usd", Kind: kindNumber, Required: true, Min: priceMin, Max: priceMax},
			{Name: "currency", Kind: kindString, Required: false},
		},
	}

	reg[TypeAppLaunched] = Schema{Lenient: true}

	reg[TypeTournamentEntered] = Schema{
		Fields: []fieldSchema{
			{Name: "tournament_id", Kind: kindString, Required: true},
		},
	}

	return reg
}

func (s Schema) Validate(payload map[string]interface{}) error {
	for _, f := range s.Fields {
		v, present := payload[f.Name]
		if !present {
			if f.Required {
				return fmt.Errorf("missing required field %q", f.Name)
			}
			continue
		}
		if err := validateField(f, v); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

func validateField(f fieldSchema, v interface{}) error {
	switch f.Kind {
	case kindNumber:
		n, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("expected a number")
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Errorf("value %v below minimum %v", n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Errorf("value %v above maximum %v", n, *f.Max)
		}
	case kindString:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected a string")
		}
		if len(f.Enum) > 0 && !contains(f.Enum, str) {
			return fmt.Errorf("value %q not in allowed set %v", str, f.Enum)
		}
	case kindBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected a bool")
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
