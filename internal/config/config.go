// Package config loads linkdesk configuration.
//
// Values come from built-in defaults, then an optional YAML file named by
// --config or the LINKDESK_CONFIG environment variable, then command-line
// flags. Each layer overrides the one before it.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"linkdesk/internal/types"
)

// EnvVar names the config file when --config is not given.
const EnvVar = "LINKDESK_CONFIG"

// Backends accepted by Config.Backend.
const (
	BackendVNC   = "vnc"
	BackendLocal = "local"
)

// Config is the complete configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Title is drawn in the mirror's title bar.
	Title string `yaml:"title"`

	// Backend selects the remote framebuffer: vnc or local.
	Backend string `yaml:"backend"`

	VNC    VNCConfig    `yaml:"vnc"`
	Local  LocalConfig  `yaml:"local"`
	Screen ScreenConfig `yaml:"screen"`
	Log    LogConfig    `yaml:"log"`
}

// VNCConfig configures the VNC backend.
type VNCConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	// Shared lets other clients stay connected to the server.
	Shared         bool          `yaml:"shared"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// LocalConfig configures the local display backend.
type LocalConfig struct {
	Display int `yaml:"display"`
}

// ScreenConfig sizes the mirror and the click-maps around it.
type ScreenConfig struct {
	Size types.Size `yaml:"size"`

	// Refresh is the poll loop interval.
	Refresh time.Duration `yaml:"refresh"`

	// Precision is the number of pixels one axis slice covers.
	Precision int `yaml:"precision"`
	// Thickness is the height of the horizontal ruler.
	Thickness int `yaml:"thickness"`
	Padding   int `yaml:"padding"`
	// Fold is the row length of the vertical ruler.
	Fold int `yaml:"fold"`

	// BlinkRate is the indicator blink frequency in frames per second.
	BlinkRate float64 `yaml:"blink_rate"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:  ":8080",
		Title:   "linkdesk",
		Backend: BackendVNC,
		VNC: VNCConfig{
			Address:        "127.0.0.1:5900",
			Shared:         true,
			DialTimeout:    10 * time.Second,
			ReconnectDelay: 5 * time.Second,
		},
		Screen: ScreenConfig{
			Size:      types.Size{Width: 640, Height: 480},
			Refresh:   300 * time.Millisecond,
			Precision: 4,
			Thickness: 14,
			Padding:   2,
			Fold:      24,
			BlinkRate: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile merges the YAML file at path into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// AddFlags registers one flag per overridable field, defaulting to the
// current values.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Listen, "listen", c.Listen, "HTTP listen address")
	fs.StringVar(&c.Title, "title", c.Title, "title drawn above the screen")
	fs.StringVar(&c.Backend, "backend", c.Backend, "remote framebuffer: vnc or local")
	fs.StringVar(&c.VNC.Address, "vnc-address", c.VNC.Address, "VNC server host:port")
	fs.StringVar(&c.VNC.Password, "vnc-password", c.VNC.Password, "VNC password")
	fs.BoolVar(&c.VNC.Shared, "vnc-shared", c.VNC.Shared, "leave other VNC clients connected")
	fs.IntVar(&c.Local.Display, "display", c.Local.Display, "local display index")
	fs.IntVar(&c.Screen.Size.Width, "width", c.Screen.Size.Width, "screen width in pixels")
	fs.IntVar(&c.Screen.Size.Height, "height", c.Screen.Size.Height, "screen height in pixels")
	fs.DurationVar(&c.Screen.Refresh, "refresh", c.Screen.Refresh, "stream refresh interval")
	fs.IntVar(&c.Screen.Precision, "precision", c.Screen.Precision, "pixels per clickable slice")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug, info, warn, error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format: text or json")
}

// Parse builds the configuration from defaults, the config file and args.
// fs receives every flag so callers can print usage; it returns
// pflag.ErrHelp when help was requested.
func Parse(fs *pflag.FlagSet, args []string) (*Config, error) {
	// The file has to be read before the real parse so flags override it.
	pre := pflag.NewFlagSet(fs.Name(), pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.BoolP("help", "h", false, "")
	path := pre.String("config", os.Getenv(EnvVar), "")
	_ = pre.Parse(args)

	cfg := Default()
	if *path != "" {
		if err := cfg.LoadFile(*path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	fs.String("config", *path, "YAML config file (env "+EnvVar+")")
	cfg.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	switch c.Backend {
	case BackendVNC:
		if c.VNC.Address == "" {
			errs = append(errs, errors.New("vnc.address is required"))
		}
	case BackendLocal:
		if c.Local.Display < 0 {
			errs = append(errs, errors.New("local.display must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend must be %s or %s, got %q", BackendVNC, BackendLocal, c.Backend))
	}

	s := c.Screen
	if s.Size.Width <= 0 || s.Size.Height <= 0 {
		errs = append(errs, fmt.Errorf("screen.size %dx%d must be positive", s.Size.Width, s.Size.Height))
	}
	if s.Refresh <= 0 {
		errs = append(errs, errors.New("screen.refresh must be positive"))
	}
	if s.Precision <= 0 {
		errs = append(errs, errors.New("screen.precision must be positive"))
	}
	if s.Padding < 0 {
		errs = append(errs, errors.New("screen.padding must not be negative"))
	}
	if s.Thickness <= 2*s.Padding {
		errs = append(errs, errors.New("screen.thickness must exceed twice the padding"))
	}
	if s.Fold <= 0 {
		errs = append(errs, errors.New("screen.fold must be positive"))
	}
	if s.BlinkRate <= 0 {
		errs = append(errs, errors.New("screen.blink_rate must be positive"))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}
