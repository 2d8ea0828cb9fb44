package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inspirepan/chatcore"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"5 + 5", 10},
		{"10 * 3 - 2", 28},
		{"(100 / 4) + 25", 50},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 % 4", 2},
		{"-3 + 5", 2},
		{"2 ** 3 ** 2", 512},
		{"1.5 * 2", 3},
		{".5 + .25", 0.75},
		{"- (2 - 5)", 3},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := evaluate(tc.expr)
			require.NoError(t, err)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	_, err := evaluate("2 + x")
	require.ErrorIs(t, err, errInvalidChars)

	_, err = evaluate("1 / 0")
	require.ErrorIs(t, err, errInvalidResult)

	_, err = evaluate("0 / 0")
	require.ErrorIs(t, err, errInvalidResult)

	_, err = evaluate("(1 + 2")
	require.Error(t, err)

	_, err = evaluate("1 +")
	require.Error(t, err)

	_, err = evaluate("   ")
	require.Error(t, err)

	_, err = evaluate("1 2")
	require.Error(t, err)
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "1,234,567", formatNumber(1234567))
	require.Equal(t, "1,234.568", formatNumber(1234.5678))
	require.Equal(t, "0.3", formatNumber(0.1+0.2))
	require.Equal(t, "-1,000", formatNumber(-1000))
	require.Equal(t, "0", formatNumber(-0.0001))
}

func TestCalculate(t *testing.T) {
	out, err := calculate(context.Background(), map[string]any{"expression": "1000 * 3"})
	require.NoError(t, err)
	require.Equal(t, Calculation{Expression: "1000 * 3", Result: 3000, Formatted: "3,000"}, out)

	out, err = calculate(context.Background(), map[string]any{"expression": "rm -rf"})
	require.NoError(t, err)
	fail, ok := out.(chatcore.FailureOutput)
	require.True(t, ok)
	require.True(t, fail.Error)
	require.Equal(t, errInvalidChars.Error(), fail.Message)
}
