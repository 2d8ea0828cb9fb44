package tools

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inspirepan/chatcore"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestRandomNumber(t *testing.T) {
	r := NewRandom(fixedSource(0.5))
	out, err := r.Execute(context.Background(), map[string]any{"type": "number", "min": 1.0, "max": 10.0})
	require.NoError(t, err)
	require.Equal(t, RandomNumber{Type: "number", Min: 1, Max: 10, Result: 6}, out)

	out, err = r.Execute(context.Background(), map[string]any{"type": "number"})
	require.NoError(t, err)
	require.Equal(t, RandomNumber{Type: "number", Min: 0, Max: 100, Result: 50}, out)
}

func TestRandomNumberStaysInRange(t *testing.T) {
	r := NewRandom(nil)
	for i := 0; i < 200; i++ {
		out, err := r.Execute(context.Background(), map[string]any{"type": "number", "min": 3.0, "max": 7.0})
		require.NoError(t, err)
		n := out.(RandomNumber).Result
		require.GreaterOrEqual(t, n, 3.0)
		require.LessOrEqual(t, n, 7.0)
	}
}

func TestRandomUUID(t *testing.T) {
	out, err := NewRandom(nil).Execute(context.Background(), map[string]any{"type": "uuid"})
	require.NoError(t, err)
	_, err = uuid.Parse(out.(RandomUUID).Result)
	require.NoError(t, err)
}

func TestRandomPick(t *testing.T) {
	r := NewRandom(fixedSource(0.99))
	out, err := r.Execute(context.Background(), map[string]any{"type": "pick", "items": []any{"a", "b", "c"}})
	require.NoError(t, err)
	require.Equal(t, RandomPick{Type: "pick", Items: []string{"a", "b", "c"}, Result: "c", Index: 2}, out)

	out, err = r.Execute(context.Background(), map[string]any{"type": "pick"})
	require.NoError(t, err)
	require.Equal(t, chatcore.FailureOutput{Error: true, Message: "No items provided to pick from"}, out)

	out, err = r.Execute(context.Background(), map[string]any{"type": "dice"})
	require.NoError(t, err)
	require.Equal(t, chatcore.FailureOutput{Error: true, Message: "Invalid random type"}, out)
}
