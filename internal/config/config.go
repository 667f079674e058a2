package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	LogLevel   string        `mapstructure:"log_level"`
	Listen     string        `mapstructure:"listen"`
	Token      string        `mapstructure:"token"`
	ICEServers []string      `mapstructure:"ice_servers"`
	Signal     SignalConfig  `mapstructure:"signal"`
	Audio      AudioConfig   `mapstructure:"audio"`
	Spatial    SpatialConfig `mapstructure:"spatial"`
	Debug      DebugConfig   `mapstructure:"debug"`
}

type SignalConfig struct {
	Address      string        `mapstructure:"address"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
}

type AudioConfig struct {
	SampleRate int    `mapstructure:"sample_rate"`
	FrameMs    int    `mapstructure:"frame_ms"`
	Output     string `mapstructure:"output"`
	Input      string `mapstructure:"input"`
}

type SpatialConfig struct {
	Mode         string   `mapstructure:"mode"`
	PanningModel string   `mapstructure:"panning_model"`
	Smoothing    float64  `mapstructure:"smoothing"`
	Stages       []string `mapstructure:"stages"`
}

type DebugConfig struct {
	File string `mapstructure:"file"`
}

const (
	DeviceReal = "device"
	DeviceNone = "none"

	// CodecSampleRate is the only rate G.722 wideband works at.
	CodecSampleRate = 16000
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", "127.0.0.1:24455")
	v.SetDefault("token", "")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("signal.address", "localhost:24454")
	v.SetDefault("signal.read_limit", 65536)
	v.SetDefault("signal.write_timeout", "5s")
	v.SetDefault("signal.send_buffer", 64)

	v.SetDefault("audio.sample_rate", CodecSampleRate)
	v.SetDefault("audio.frame_ms", 20)
	v.SetDefault("audio.output", DeviceReal)
	v.SetDefault("audio.input", DeviceReal)

	v.SetDefault("spatial.mode", "positional")
	v.SetDefault("spatial.panning_model", "binaural")
	v.SetDefault("spatial.smoothing", 0.05)
	v.SetDefault("spatial.stages", []string{"distance-gain", "directional"})

	v.SetDefault("debug.file", "")
}

// Load reads path, or config/config.<CONFIG_ENV>.yaml when path is empty,
// then applies VOICEPEER_* environment overrides. A missing default file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("VOICEPEER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Warn().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Str("listen", cfg.Listen).
		Str("signal", cfg.Signal.Address).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Audio.SampleRate != CodecSampleRate {
		return fmt.Errorf("audio.sample_rate must be %d (G.722 wideband), got %d", CodecSampleRate, c.Audio.SampleRate)
	}
	if c.Audio.FrameMs <= 0 {
		return fmt.Errorf("audio.frame_ms must be positive, got %d", c.Audio.FrameMs)
	}
	for key, val := range map[string]string{"audio.output": c.Audio.Output, "audio.input": c.Audio.Input} {
		if val != DeviceReal && val != DeviceNone {
			return fmt.Errorf("%s must be %q or %q, got %q", key, DeviceReal, DeviceNone, val)
		}
	}
	if c.Signal.Address == "" {
		return errors.New("signal.address is required")
	}
	return nil
}
