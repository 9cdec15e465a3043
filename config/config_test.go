package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "viewer.yml", `
model: assets/helmet.glb
ibl_intensity: 0.5
normalization_fudge: 1.25
orbit:
  friction: 0.2
  pitch: 35
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "assets/helmet.glb", cfg.Model)
	assert.Equal(t, float32(0.5), cfg.IBLIntensity)
	assert.Equal(t, float32(1.25), cfg.NormalizationFudge)
	assert.Equal(t, float32(0.2), cfg.Orbit.Friction)
	assert.Equal(t, float32(35), cfg.Orbit.Pitch)

	d := Default()
	assert.Equal(t, d.Width, cfg.Width, "unset fields keep defaults")
	assert.Equal(t, d.Orbit.Distance, cfg.Orbit.Distance)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "viewer.toml", `
model = "scene.json"
width = 800
height = 600
load_timeout_seconds = 2.5

[orbit]
sensitivity = 0.25
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scene.json", cfg.Model)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.Equal(t, 2500*time.Millisecond, cfg.LoadTimeout())
	assert.Equal(t, float32(0.25), cfg.Orbit.Sensitivity)
	assert.Equal(t, Default().Orbit.Friction, cfg.Orbit.Friction)
}

func TestLoadEmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "modle: typo.glb\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.toml", "modle = \"typo.glb\"\n"))
	assert.Error(t, err)
}

func TestLoadRejectsUnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "viewer.ini", "model=x\n"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestResolveFlagsOverrideFile(t *testing.T) {
	cfg := Default()
	cfg.Model = "from-file.glb"
	cfg.IBLIntensity = 2

	require.NoError(t, cfg.Resolve(Flags{
		Model:        "from-flag.glb",
		IBLIntensity: -1,
		Size:         "640x480",
		Headless:     true,
	}))

	assert.Equal(t, "from-flag.glb", cfg.Model)
	assert.Equal(t, float32(2), cfg.IBLIntensity, "negative intensity flag means unset")
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.True(t, cfg.Headless)
	assert.False(t, cfg.Debug)
}

func TestResolveRepairsInvalidValues(t *testing.T) {
	cfg := Config{
		IBLIntensity: -3,
		Orbit:        Orbit{Friction: 4, MinDistance: 10, MaxDistance: 1},
	}
	require.NoError(t, cfg.Resolve(Flags{IBLIntensity: -1}))

	d := Default()
	assert.Equal(t, d.Width, cfg.Width)
	assert.Equal(t, d.Output, cfg.Output)
	assert.Zero(t, cfg.IBLIntensity)
	assert.Equal(t, d.NormalizationFudge, cfg.NormalizationFudge)
	assert.Equal(t, d.Orbit.Friction, cfg.Orbit.Friction)
	assert.Equal(t, d.Orbit.MinDistance, cfg.Orbit.MinDistance)
	assert.Equal(t, d.Orbit.MaxDistance, cfg.Orbit.MaxDistance)
	assert.Positive(t, cfg.Workers)

	still := Config{Orbit: Orbit{Friction: 0}}
	require.NoError(t, still.Resolve(Flags{IBLIntensity: -1}))
	assert.Equal(t, d.Orbit.Friction, still.Orbit.Friction, "zero friction never settles")
}

func TestResolveRejectsBadSize(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Resolve(Flags{Size: "wide", IBLIntensity: -1}))
}

func TestParseSize(t *testing.T) {
	w, h, err := ParseSize(" 1920X1080 ")
	require.NoError(t, err)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	for _, bad := range []string{"", "1920", "x1080", "0x10", "-5x5", "axb"} {
		_, _, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestRegisterFlags(t *testing.T) {
	fs := flag.NewFlagSet("oxyview", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-model", "a.obj", "-ibl-intensity", "0.75", "-debug"}))

	assert.Equal(t, "a.obj", f.Model)
	assert.Equal(t, 0.75, f.IBLIntensity)
	assert.True(t, f.Debug)
	assert.Equal(t, "oxyview.yaml", f.Config)
}
