package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range append(Names(), "gemini", "claude", "") {
		p, err := New(name, "some-model", Options{APIKey: "k"})
		require.NoError(t, err, name)
		require.NotNil(t, p, name)
	}

	_, err := New("bedrock", "m", Options{})
	require.ErrorContains(t, err, "unknown provider")

	_, err = New(Google, "", Options{})
	require.Error(t, err)
}
