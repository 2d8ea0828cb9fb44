package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "chatcore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInstallListUninstall(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := s.Install(ctx, "u1", "calculator")
	require.NoError(t, err)
	require.Equal(t, base.Add(time.Minute), first.InstalledAt)

	_, err = s.Install(ctx, "u1", "displayWeather")
	require.NoError(t, err)

	again, err := s.Install(ctx, "u1", "calculator")
	require.NoError(t, err)
	require.Equal(t, first.InstalledAt, again.InstalledAt)

	ids, err := s.ToolIDs(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"calculator", "displayWeather"}, ids)

	others, err := s.List(ctx, "u2")
	require.NoError(t, err)
	require.Empty(t, others)

	removed, err := s.Uninstall(ctx, "u1", "calculator")
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = s.Uninstall(ctx, "u1", "calculator")
	require.NoError(t, err)
	require.False(t, removed)

	ids, err = s.ToolIDs(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"displayWeather"}, ids)
}

func TestEmptyUserUsesDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in, err := s.Install(ctx, "  ", "random")
	require.NoError(t, err)
	require.Equal(t, DefaultUser, in.UserID)

	list, err := s.List(ctx, DefaultUser)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestInstallRequiresTool(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Install(context.Background(), "u1", "")
	require.ErrorIs(t, err, ErrEmptyTool)
}

func TestNilStore(t *testing.T) {
	var s *Store
	_, err := s.List(context.Background(), "u1")
	require.ErrorIs(t, err, ErrNilStore)
	require.NoError(t, s.Close())
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatcore.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Install(context.Background(), "u1", "calculator")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	ids, err := s.ToolIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"calculator"}, ids)
}
