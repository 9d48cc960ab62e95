package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/svg2video/internal/export"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	art := &export.Artifact{
		Kind: export.KindFrames, Path: "/tmp/x.zip", Name: "svg-animation-frames.zip",
		MIME: "application/zip", Format: "webm", Frames: 25, Duration: 2.5,
		Warnings: []string{"encoding failed", "second"},
	}
	rec, err := s.Add(ctx, FromArtifact("sess", "logo.svg", 800, 600, 10, art))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "sess", got.SessionID)
	assert.Equal(t, "frames", got.Kind)
	assert.Equal(t, 25, got.Frames)
	assert.Equal(t, 2.5, got.Duration)
	assert.Equal(t, []string{"encoding failed", "second"}, got.Warnings)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, sess := range []string{"a", "b", "a"} {
		_, err := s.Add(ctx, Record{ID: sess + string(rune('0'+i)), SessionID: sess, Kind: "video", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a2", all[0].ID)

	onlyA, err := s.List(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	one, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	require.NoError(t, s.Delete(ctx, "a0"))
	assert.ErrorIs(t, s.Delete(ctx, "a0"), ErrNotFound)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.Add(ctx, Record{ID: "x", SessionID: "s", Kind: "video"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, "x")
	assert.NoError(t, err)
}
