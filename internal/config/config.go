package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SIGNALROOM"

type Config struct {
	Mode        string        `mapstructure:"mode"`
	Port        int           `mapstructure:"port"`
	StaticPath  string        `mapstructure:"static_path"`
	Secret      string        `mapstructure:"secret"`
	LogLevel    string        `mapstructure:"log_level"`
	MetricsPath string        `mapstructure:"metrics_path"`
	Signal      SignalConfig  `mapstructure:"signal"`
	Session     SessionConfig `mapstructure:"session"`
	ICEServers  []ICEServer   `mapstructure:"ice_servers"`
}

// SignalConfig tunes the WebSocket signaling endpoint.
type SignalConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendQueue  int           `mapstructure:"send_queue"`
	// RateLimit is inbound events per second per connection; 0 disables.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
	// Backpressure is "close" or "drop".
	Backpressure            string `mapstructure:"backpressure"`
	NotifyUnavailableTarget bool   `mapstructure:"notify_unavailable_target"`
}

type SessionConfig struct {
	EmptyTTL      time.Duration `mapstructure:"empty_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")

	v.SetDefault("signal.read_limit", 65536)
	v.SetDefault("signal.ping_period", "54s")
	v.SetDefault("signal.pong_wait", "60s")
	v.SetDefault("signal.write_wait", "5s")
	v.SetDefault("signal.send_queue", 64)
	v.SetDefault("signal.rate_limit", 50)
	v.SetDefault("signal.rate_burst", 100)
	v.SetDefault("signal.backpressure", "close")
	v.SetDefault("signal.notify_unavailable_target", false)

	v.SetDefault("session.empty_ttl", "10m")
	v.SetDefault("session.sweep_interval", "1m")

	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads config/config.<CONFIG_ENV>.yaml (or --config), then
// SIGNALROOM_* environment variables, then command line flags.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("signalroom", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("mode", "release", "gin mode: release or debug")
	fs.String("log-level", "info", "zerolog level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fileName, _ := fs.GetString("config")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{"port": "port", "mode": "mode", "log_level": "log-level"} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Mode != "release" && c.Mode != "debug" && c.Mode != "test" {
		errs = append(errs, fmt.Errorf("mode %q: want release, debug or test", c.Mode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Signal.SendQueue <= 0 {
		errs = append(errs, errors.New("signal.send_queue must be positive"))
	}
	if c.Signal.PongWait <= c.Signal.PingPeriod {
		errs = append(errs, errors.New("signal.pong_wait must exceed signal.ping_period"))
	}
	if c.Signal.RateLimit < 0 {
		errs = append(errs, errors.New("signal.rate_limit must not be negative"))
	}
	if c.Signal.Backpressure != "close" && c.Signal.Backpressure != "drop" {
		errs = append(errs, fmt.Errorf("signal.backpressure %q: want close or drop", c.Signal.Backpressure))
	}
	for i, s := range c.ICEServers {
		if len(s.URLs) == 0 {
			errs = append(errs, fmt.Errorf("ice_servers[%d]: no urls", i))
		}
	}
	return errors.Join(errs...)
}

// WebRTCICEServers converts the configured servers into the shape browsers
// and pion accept as RTCConfiguration.iceServers.
func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		server := webrtc.ICEServer{URLs: urls, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, server)
	}
	return out
}
