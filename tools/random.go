package tools

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/registry"
)

const RandomID = "random"

// Source yields floats in [0, 1).
type Source interface {
	Float64() float64
}

// Random generates numbers and UUIDs and picks items.
type Random struct {
	mu  sync.Mutex
	src Source
}

// NewRandom returns a random tool drawing from src, or from the global
// generator when src is nil.
func NewRandom(src Source) *Random {
	return &Random{src: src}
}

func (r *Random) float() float64 {
	if r.src == nil {
		return rand.Float64()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (r *Random) Definition() registry.Definition {
	return registry.Definition{
		ID:          RandomID,
		Name:        "Random Generator",
		Description: "Generate random numbers, UUIDs, or pick random items from a list",
		Icon:        "🎲",
		Category:    "utility",
		Parameters: registry.Schema{Fields: []registry.Field{
			{Name: "type", Type: registry.TypeString, Description: "Type of random generation", Required: true, Enum: []string{"number", "uuid", "pick"}},
			{Name: "min", Type: registry.TypeNumber, Description: "Minimum value for number generation"},
			{Name: "max", Type: registry.TypeNumber, Description: "Maximum value for number generation"},
			{Name: "items", Type: registry.TypeArray, Items: registry.TypeString, Description: "List of items to pick from"},
		}},
		Execute:  r.Execute,
		Parallel: true,
	}
}

type RandomNumber struct {
	Type   string  `json:"type"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Result float64 `json:"result"`
}

type RandomUUID struct {
	Type   string `json:"type"`
	Result string `json:"result"`
}

type RandomPick struct {
	Type   string   `json:"type"`
	Items  []string `json:"items"`
	Result string   `json:"result"`
	Index  int      `json:"index"`
}

func (r *Random) Execute(_ context.Context, input map[string]any) (any, error) {
	kind, _ := input["type"].(string)
	switch kind {
	case "number":
		lo := numberOr(input["min"], 0)
		hi := numberOr(input["max"], 100)
		return RandomNumber{
			Type:   "number",
			Min:    lo,
			Max:    hi,
			Result: math.Floor(r.float()*(hi-lo+1)) + lo,
		}, nil
	case "uuid":
		return RandomUUID{Type: "uuid", Result: uuid.NewString()}, nil
	case "pick":
		items := stringsOf(input["items"])
		if len(items) == 0 {
			return chatcore.FailureOutput{Error: true, Message: "No items provided to pick from"}, nil
		}
		i := int(math.Floor(r.float() * float64(len(items))))
		if i >= len(items) {
			i = len(items) - 1
		}
		return RandomPick{Type: "pick", Items: items, Result: items[i], Index: i}, nil
	}
	return chatcore.FailureOutput{Error: true, Message: "Invalid random type"}, nil
}

func numberOr(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

func stringsOf(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
