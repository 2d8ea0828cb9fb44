package tools

import (
	"context"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/registry"
)

const CalculatorID = "calculator"

// Calculation is the calculator output.
type Calculation struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Formatted  string  `json:"formatted"`
}

// CalculatorDefinition returns the arithmetic calculator tool.
func CalculatorDefinition() registry.Definition {
	return registry.Definition{
		ID:   CalculatorID,
		Name: "Calculator",
		Description: "Use this tool to perform mathematical calculations. Accepts arithmetic expressions with numbers " +
			"and operators (+, -, *, /, %, parentheses). Examples: '5 + 5', '10 * 3 - 2', '(100 / 4) + 25'",
		Icon:     "🧮",
		Category: "math",
		Parameters: registry.Schema{Fields: []registry.Field{{
			Name:        "expression",
			Type:        registry.TypeString,
			Description: "The mathematical expression to calculate. Must contain only numbers and operators (+, -, *, /, %, parentheses). Example: '5 + 5'",
			Required:    true,
		}}},
		Execute:  calculate,
		Parallel: true,
	}
}

func calculate(_ context.Context, input map[string]any) (any, error) {
	expression, _ := input["expression"].(string)
	v, err := evaluate(expression)
	if err != nil {
		return chatcore.FailureOutput{Error: true, Message: err.Error()}, nil
	}
	return Calculation{
		Expression: expression,
		Result:     v,
		Formatted:  formatNumber(v),
	}, nil
}

// formatNumber renders v with thousands separators and at most three
// fraction digits.
func formatNumber(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0 // drop negative zero
	}
	return humanize.Commaf(r)
}
