package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxyview/config"
	"github.com/Carmen-Shannon/oxyview/engine/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# unit quad facing +Z
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
f 1 2 3
f 1 3 4
`

func headlessConfig(t *testing.T, model string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Model = model
	cfg.Output = filepath.Join(t.TempDir(), "out.webp")
	cfg.Workers = 1
	require.NoError(t, cfg.Resolve(config.Flags{Size: "32x24", IBLIntensity: -1, Headless: true}))
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readWebP(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))
	return data
}

func TestRenderHeadlessWritesSnapshot(t *testing.T) {
	model := filepath.Join(t.TempDir(), "quad.obj")
	require.NoError(t, os.WriteFile(model, []byte(quadOBJ), 0o644))

	cfg := headlessConfig(t, model)
	require.NoError(t, renderHeadless(context.Background(), cfg, quietLogger()))
	readWebP(t, cfg.Output)
}

func TestRenderHeadlessReportsLoadFailure(t *testing.T) {
	cfg := headlessConfig(t, filepath.Join(t.TempDir(), "missing.obj"))

	err := renderHeadless(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	var le *loader.LoadError
	assert.True(t, errors.As(err, &le))

	readWebP(t, cfg.Output)
}

func TestRenderHeadlessNeedsModel(t *testing.T) {
	cfg := headlessConfig(t, "")
	assert.ErrorIs(t, renderHeadless(context.Background(), cfg, quietLogger()), errNoModel)
}

func TestParamsSkyboxToggle(t *testing.T) {
	cfg := config.Default()
	cfg.Model = "a.glb"
	cfg.Skybox = "sky.hdr.png"
	cfg.IBL = "ibl.png"

	p := params(cfg, nil, true, false)
	require.NotNil(t, p.Skybox)
	assert.Equal(t, "sky.hdr.png", p.Skybox.String())
	require.NotNil(t, p.IBL)
	assert.Equal(t, cfg.IBLIntensity, p.IBL.Intensity)

	assert.Nil(t, params(cfg, nil, false, false).Skybox)
}
