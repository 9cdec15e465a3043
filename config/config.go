// Package config holds the viewer's settings: a YAML or TOML file overlaid by command line flags.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Config holds all viewer settings.
type Config struct {
	// Assets
	Model        string  `yaml:"model" toml:"model"`
	Skybox       string  `yaml:"skybox" toml:"skybox"`
	IBL          string  `yaml:"ibl" toml:"ibl"`
	IBLIntensity float32 `yaml:"ibl_intensity" toml:"ibl_intensity"`

	// Output
	Output   string `yaml:"output" toml:"output"`
	Width    int    `yaml:"width" toml:"width"`
	Height   int    `yaml:"height" toml:"height"`
	Headless bool   `yaml:"headless" toml:"headless"`
	Debug    bool   `yaml:"debug" toml:"debug"`

	// Render settings
	Supersample int     `yaml:"supersample" toml:"supersample"`
	Exposure    float32 `yaml:"exposure" toml:"exposure"`
	FrameLimit  float64 `yaml:"frame_limit" toml:"frame_limit"`

	// Loading
	Workers            int     `yaml:"workers" toml:"workers"`
	LoadTimeoutSeconds float64 `yaml:"load_timeout_seconds" toml:"load_timeout_seconds"`
	NormalizationFudge float32 `yaml:"normalization_fudge" toml:"normalization_fudge"`
	Watch              bool    `yaml:"watch" toml:"watch"`

	Orbit Orbit `yaml:"orbit" toml:"orbit"`
}

// Orbit holds the orbit camera tunables. Angles are in degrees.
type Orbit struct {
	Yaw             float32 `yaml:"yaw" toml:"yaw"`
	Pitch           float32 `yaml:"pitch" toml:"pitch"`
	Distance        float32 `yaml:"distance" toml:"distance"`
	MinDistance     float32 `yaml:"min_distance" toml:"min_distance"`
	MaxDistance     float32 `yaml:"max_distance" toml:"max_distance"`
	Sensitivity     float32 `yaml:"sensitivity" toml:"sensitivity"`
	ZoomSensitivity float32 `yaml:"zoom_sensitivity" toml:"zoom_sensitivity"`
	Friction        float32 `yaml:"friction" toml:"friction"`
	Epsilon         float32 `yaml:"epsilon" toml:"epsilon"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		IBLIntensity:       1,
		Output:             "oxyview.webp",
		Width:              1280,
		Height:             720,
		Supersample:        2,
		Exposure:           1,
		FrameLimit:         60,
		Workers:            runtime.NumCPU(),
		LoadTimeoutSeconds: 30,
		NormalizationFudge: 1,
		Orbit: Orbit{
			Pitch:           20,
			Distance:        3,
			MinDistance:     0.5,
			MaxDistance:     50,
			Sensitivity:     0.5,
			ZoomSensitivity: 0.1,
			Friction:        0.1,
			Epsilon:         0.01,
		},
	}
}

// Load reads a config file. Fields not set in the file keep their Default values, and a
// missing file yields Default without error.
//
// Parameters:
//   - path: a .yaml, .yml or .toml file
//
// Returns:
//   - Config: the loaded settings
//   - error: error if the file cannot be read or parsed
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := Decode(filepath.Ext(path), data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses data in the format named by ext into cfg. Unknown keys are rejected.
//
// Parameters:
//   - ext: the file extension, with or without the leading dot
//   - data: the file contents
//   - cfg: the destination; fields absent from data are left untouched
//
// Returns:
//   - error: ErrUnsupportedFormat, or the parser's error
func Decode(ext string, data []byte, cfg *Config) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case "toml":
		return toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// LoadTimeout returns the per-load timeout, or zero for none.
func (c *Config) LoadTimeout() time.Duration {
	if c.LoadTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.LoadTimeoutSeconds * float64(time.Second))
}

// Resolve applies flag overrides and replaces out-of-range values with defaults.
// Flags take priority when set.
//
// Parameters:
//   - flags: the parsed command line flags
//
// Returns:
//   - error: error if the size flag is malformed
func (c *Config) Resolve(flags Flags) error {
	if flags.Model != "" {
		c.Model = flags.Model
	}
	if flags.Skybox != "" {
		c.Skybox = flags.Skybox
	}
	if flags.IBL != "" {
		c.IBL = flags.IBL
	}
	if flags.IBLIntensity >= 0 {
		c.IBLIntensity = float32(flags.IBLIntensity)
	}
	if flags.Out != "" {
		c.Output = flags.Out
	}
	if flags.Size != "" {
		w, h, err := ParseSize(flags.Size)
		if err != nil {
			return err
		}
		c.Width, c.Height = w, h
	}
	if flags.Headless {
		c.Headless = true
	}
	if flags.Debug {
		c.Debug = true
	}

	d := Default()
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	if c.Output == "" {
		c.Output = d.Output
	}
	if c.IBLIntensity < 0 {
		c.IBLIntensity = 0
	}
	if c.Supersample <= 0 {
		c.Supersample = d.Supersample
	}
	if c.Exposure <= 0 {
		c.Exposure = d.Exposure
	}
	if c.FrameLimit <= 0 {
		c.FrameLimit = d.FrameLimit
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.NormalizationFudge <= 0 {
		c.NormalizationFudge = d.NormalizationFudge
	}
	if c.Orbit.Friction <= 0 || c.Orbit.Friction > 1 {
		c.Orbit.Friction = d.Orbit.Friction
	}
	if c.Orbit.Epsilon <= 0 {
		c.Orbit.Epsilon = d.Orbit.Epsilon
	}
	if c.Orbit.MinDistance <= 0 || c.Orbit.MaxDistance < c.Orbit.MinDistance {
		c.Orbit.MinDistance, c.Orbit.MaxDistance = d.Orbit.MinDistance, d.Orbit.MaxDistance
	}
	return nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Config       string
	Model        string
	Skybox       string
	IBL          string
	IBLIntensity float64
	Out          string
	Size         string
	Headless     bool
	Debug        bool
}

// RegisterFlags binds the viewer flags on fs.
//
// Parameters:
//   - fs: the flag set to register on
//
// Returns:
//   - *Flags: filled in when fs is parsed
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "oxyview.yaml", "config file (.yaml, .yml or .toml)")
	fs.StringVar(&f.Model, "model", "", "model to view (.gltf, .glb, .obj or .json scene)")
	fs.StringVar(&f.Skybox, "skybox", "", "equirectangular skybox image")
	fs.StringVar(&f.IBL, "ibl", "", "equirectangular image used for ambient lighting")
	fs.Float64Var(&f.IBLIntensity, "ibl-intensity", -1, "ambient lighting intensity")
	fs.StringVar(&f.Out, "out", "", "snapshot path (.webp)")
	fs.StringVar(&f.Size, "size", "", "viewport size as WIDTHxHEIGHT")
	fs.BoolVar(&f.Headless, "headless", false, "render one frame to -out and exit")
	fs.BoolVar(&f.Debug, "debug", false, "show debug stats and enable the profiler")
	return f
}

// ParseSize parses a size of the form "WIDTHxHEIGHT".
//
// Parameters:
//   - s: the size string
//
// Returns:
//   - int: the width
//   - int: the height
//   - error: error if s is malformed or not positive
func ParseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("config: size %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("config: size %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("config: size %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("config: size %q: must be positive", s)
	}
	return w, h, nil
}
