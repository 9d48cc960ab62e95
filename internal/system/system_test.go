package system

import (
	"context"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.svg")
	fresh := filepath.Join(dir, "Fresh.SVG")
	other := filepath.Join(dir, "note.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	got, err := FindLatestSVG(dir)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	_, err = FindLatestPreset(dir)
	assert.Error(t, err)
}

func TestOutputName(t *testing.T) {
	name := OutputName("output", "input/my logo.svg", "webm")
	assert.Equal(t, "output", filepath.Dir(name))
	assert.True(t, strings.HasPrefix(filepath.Base(name), "my_logo_"))
	assert.Equal(t, ".webm", filepath.Ext(name))
}

func TestImagePool(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 4, 3)

	img := p.Get(rect)
	assert.Equal(t, rect, img.Bounds())
	assert.Len(t, img.Pix, 4*3*4)
	p.Put(img)

	other := p.Get(image.Rect(0, 0, 2, 2))
	assert.Equal(t, image.Rect(0, 0, 2, 2), other.Bounds())

	p.Put(nil)
	p.Put(image.NewRGBA(image.Rect(0, 0, 7, 7)))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "2.0 GiB", FormatBytes(2<<30))
}

func TestCheckMemory(t *testing.T) {
	assert.NoError(t, CheckMemory(1024))

	err := CheckMemory(math.MaxUint64)
	if err != nil {
		assert.True(t, errors.Is(err, ErrInsufficientMemory))
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.svg")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, path, func() { changed <- struct{}{} })
	}()

	// даем watcher время подписаться
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.svg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("2"), 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	assert.NoError(t, <-done)
}
