package mythforge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"

	"github.com/mythforge/mythforge/gpu"
	"github.com/mythforge/mythforge/surface"
)

// SyncMode selects when a frame waits for the GPU.
type SyncMode int

const (
	// SyncImmediate waits for each frame's fence value right after present.
	SyncImmediate SyncMode = iota

	// SyncDeferred waits for a slot's fence value only when the slot is
	// about to be reused, keeping up to N-1 frames in flight.
	SyncDeferred
)

func (m SyncMode) String() string {
	switch m {
	case SyncImmediate:
		return "immediate"
	case SyncDeferred:
		return "deferred"
	}
	return fmt.Sprintf("SyncMode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m SyncMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *SyncMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "immediate", "":
		*m = SyncImmediate
	case "deferred":
		*m = SyncDeferred
	default:
		return fmt.Errorf("mythforge: unknown sync mode %q", text)
	}
	return nil
}

// Duration is a time.Duration written as a string ("250ms", "2s") in TOML.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("mythforge: %w", err)
	}
	*d = Duration(v)
	return nil
}

// Config holds renderer settings. The zero value is not valid; start from
// DefaultConfig.
type Config struct {
	// Backend names the registered backend; empty selects the best available.
	Backend string `toml:"backend"`

	// FeatureLevel is the minimum Direct3D feature level, e.g. "12_1".
	FeatureLevel string `toml:"feature_level"`

	// FrameCount is the number of back buffers and frame slots.
	FrameCount int `toml:"frame_count"`

	// Width and Height are used when the window reports an empty client area.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`

	// VSync presents with sync interval 1; otherwise 0.
	VSync bool `toml:"vsync"`

	// Debug enables the validation layer and names GPU objects.
	Debug bool `toml:"debug"`

	// BreakOnSeverity breaks into the debugger on corruption, error and
	// warning messages. Requires Debug.
	BreakOnSeverity bool `toml:"break_on_severity"`

	SyncMode SyncMode `toml:"sync_mode"`

	// WaitTimeout bounds fence waits; zero waits forever.
	WaitTimeout Duration `toml:"wait_timeout"`

	// ClearColor is the RGBA clear colour.
	ClearColor [4]float64 `toml:"clear_color"`

	// Format is the back buffer format: "rgba8unorm" or "bgra8unorm".
	Format string `toml:"format"`

	FovDegrees float32 `toml:"fov_degrees"`
	Near       float32 `toml:"near"`
	Far        float32 `toml:"far"`
}

// CornflowerBlue is the default clear colour.
var CornflowerBlue = gputypes.Color{R: 0.392, G: 0.584, B: 0.929, A: 1}

// DefaultConfig returns the reference configuration: two frames, vsync on,
// immediate synchronization and no wait timeout.
func DefaultConfig() Config {
	p := surface.DefaultProjection()
	return Config{
		FeatureLevel: "12_1",
		FrameCount:   2,
		Width:        1280,
		Height:       720,
		VSync:        true,
		SyncMode:     SyncImmediate,
		ClearColor:   [4]float64{CornflowerBlue.R, CornflowerBlue.G, CornflowerBlue.B, CornflowerBlue.A},
		Format:       "rgba8unorm",
		FovDegrees:   p.FovY,
		Near:         p.Near,
		Far:          p.Far,
	}
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("mythforge: load config: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes TOML over DefaultConfig. Unknown keys are errors.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("mythforge: parse config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("mythforge: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteConfig writes cfg as TOML.
func WriteConfig(w io.Writer, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("mythforge: encode config: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.FrameCount < surface.MinBufferCount || c.FrameCount > surface.MaxBufferCount {
		return fmt.Errorf("mythforge: frame_count %d outside [%d, %d]", c.FrameCount, surface.MinBufferCount, surface.MaxBufferCount)
	}
	if _, err := c.featureLevel(); err != nil {
		return err
	}
	if _, err := c.format(); err != nil {
		return err
	}
	if c.SyncMode != SyncImmediate && c.SyncMode != SyncDeferred {
		return fmt.Errorf("mythforge: invalid sync mode %d", int(c.SyncMode))
	}
	if c.WaitTimeout < 0 {
		return errors.New("mythforge: wait_timeout must not be negative")
	}
	if c.BreakOnSeverity && !c.Debug {
		return errors.New("mythforge: break_on_severity requires debug")
	}
	if c.FovDegrees <= 0 || c.FovDegrees >= 180 {
		return fmt.Errorf("mythforge: fov_degrees %v outside (0, 180)", c.FovDegrees)
	}
	if c.Near <= 0 || c.Far <= c.Near {
		return fmt.Errorf("mythforge: clip planes near=%v far=%v need 0 < near < far", c.Near, c.Far)
	}
	return nil
}

func (c Config) featureLevel() (gpu.FeatureLevel, error) {
	if c.FeatureLevel == "" {
		return gpu.FeatureLevel12_1, nil
	}
	return gpu.ParseFeatureLevel(c.FeatureLevel)
}

func (c Config) format() (gputypes.TextureFormat, error) {
	switch strings.ToLower(c.Format) {
	case "", "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm, nil
	case "bgra8unorm":
		return gputypes.TextureFormatBGRA8Unorm, nil
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("mythforge: unsupported format %q", c.Format)
}

func (c Config) clearColor() gputypes.Color {
	return gputypes.Color{R: c.ClearColor[0], G: c.ClearColor[1], B: c.ClearColor[2], A: c.ClearColor[3]}
}

func (c Config) syncInterval() uint32 {
	if c.VSync {
		return 1
	}
	return 0
}

func (c Config) projection() surface.Projection {
	return surface.Projection{FovY: c.FovDegrees, Near: c.Near, Far: c.Far}
}

func (d Duration) duration() time.Duration { return time.Duration(d) }
