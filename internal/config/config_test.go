package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnimationValidate(t *testing.T) {
	tests := []struct {
		name    string
		anim    Animation
		wantErr bool
	}{
		{"defaults", Default().Animation, false},
		{"zero duration", Animation{Duration: 0}, true},
		{"negative delay", Animation{Duration: 1, Delay: -1}, true},
		{"negative repeat", Animation{Duration: 1, Repeat: -2}, true},
		{"stagger", Animation{Duration: 1, Mode: ModeStagger}, false},
		{"unknown mode", Animation{Duration: 1, Mode: "spiral"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.anim.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalid))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestExportValidate(t *testing.T) {
	assert.NoError(t, Default().Export.Validate())
	assert.Error(t, Export{Width: 0, Height: 10, FPS: 10}.Validate())
	assert.Error(t, Export{Width: 10, Height: 10, FPS: 0}.Validate())
	assert.Error(t, Export{Width: 10, Height: 10, FPS: 10, Quality: 11}.Validate())
}

func TestExportTransparent(t *testing.T) {
	assert.True(t, Export{}.Transparent())
	assert.True(t, Export{Background: "Transparent"}.Transparent())
	assert.False(t, Export{Background: "#ffffff"}.Transparent())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets", "preset.yaml")

	cfg := Default()
	cfg.Animation.Duration = 3.5
	cfg.Animation.Mode = ModeStagger
	cfg.Export.Format = "gif"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3.5, loaded.Animation.Duration)
	assert.Equal(t, ModeStagger, loaded.Animation.Mode)
	assert.Equal(t, "gif", loaded.Export.Format)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("animation:\n  duration: 4\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.Animation.Duration)
	assert.Equal(t, 24, cfg.Export.FPS)
	assert.Equal(t, "linear", cfg.Animation.Easing)
}

func TestGeneratePresetPath(t *testing.T) {
	path := GeneratePresetPath("presets")
	assert.True(t, strings.HasPrefix(filepath.Base(path), "preset_"))
	assert.Equal(t, ".yaml", filepath.Ext(path))
}
