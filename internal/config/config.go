package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsmirror/obsmirror/internal/obs"
	"github.com/obsmirror/obsmirror/internal/poll"
)

type Config struct {
	OBS    OBSConfig    `yaml:"obs"`
	Poll   PollConfig   `yaml:"poll"`
	Load   LoadConfig   `yaml:"load"`
	Stream StreamConfig `yaml:"stream"`
	TUI    TUIConfig    `yaml:"tui"`
}

type OBSConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type PollConfig struct {
	Tick    time.Duration `yaml:"tick"`
	Timeout time.Duration `yaml:"timeout"`
}

type LoadConfig struct {
	ReadyTimeout    time.Duration `yaml:"ready_timeout"`
	AudioInputKinds []string      `yaml:"audio_input_kinds"`
}

type StreamConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
	Tick        time.Duration `yaml:"tick"`
	Timeout     time.Duration `yaml:"timeout"`
}

type TUIConfig struct {
	// VolumeStep is the dB change per +/- key press.
	VolumeStep float64 `yaml:"volume_step"`
	// RefreshInterval is how often the TUI redraws cached state.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

func defaultConfig() *Config {
	return &Config{
		OBS: OBSConfig{
			Host: "127.0.0.1",
			Port: 4455,
		},
		Poll: PollConfig{
			Tick:    poll.DefaultTick,
			Timeout: poll.DefaultTimeout,
		},
		Load: LoadConfig{
			ReadyTimeout:    obs.DefaultReadyTimeout,
			AudioInputKinds: append([]string(nil), obs.DefaultAudioInputKinds...),
		},
		Stream: StreamConfig{
			SettleDelay: 800 * time.Millisecond,
			Tick:        100 * time.Millisecond,
			Timeout:     10 * time.Second,
		},
		TUI: TUIConfig{
			VolumeStep:      1.0,
			RefreshInterval: 250 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults and applies OBS_WS_HOST, OBS_WS_PORT
// and OBS_WS_PASSWORD. An empty path or a missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("OBS_WS_HOST"); ok && v != "" {
		c.OBS.Host = v
	}
	if v, ok := lookup("OBS_WS_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OBS_WS_PORT: %w", err)
		}
		c.OBS.Port = port
	}
	if v, ok := lookup("OBS_WS_PASSWORD"); ok {
		c.OBS.Password = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.OBS.Host == "" {
		return errors.New("obs.host is required")
	}
	if c.OBS.Port <= 0 || c.OBS.Port > 65535 {
		return fmt.Errorf("obs.port %d out of range", c.OBS.Port)
	}
	if c.Poll.Tick < 0 || c.Poll.Timeout < 0 {
		return errors.New("poll durations must not be negative")
	}
	if c.Load.ReadyTimeout <= 0 {
		return errors.New("load.ready_timeout must be positive")
	}
	if c.Stream.Tick < 0 || c.Stream.Timeout < 0 || c.Stream.SettleDelay < 0 {
		return errors.New("stream durations must not be negative")
	}
	if c.TUI.VolumeStep <= 0 {
		return errors.New("tui.volume_step must be positive")
	}
	return nil
}

// ClientOptions converts the config into obs.Options.
func (c *Config) ClientOptions(logger *slog.Logger) obs.Options {
	return obs.Options{
		Host:            c.OBS.Host,
		Port:            strconv.Itoa(c.OBS.Port),
		Password:        c.OBS.Password,
		ReadyTimeout:    c.Load.ReadyTimeout,
		Poll:            poll.Options{Tick: c.Poll.Tick, Timeout: c.Poll.Timeout},
		AudioInputKinds: c.Load.AudioInputKinds,
		Stream: obs.StreamOptions{
			SettleDelay: c.Stream.SettleDelay,
			Tick:        c.Stream.Tick,
			Timeout:     c.Stream.Timeout,
		},
		Logger: logger,
	}
}
