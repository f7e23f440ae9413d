// Package config provides configuration loading and validation for the
// relay core: the live stream multiplexer's timeouts, recording
// destinations, and logging/server settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values for the live stream core's concurrency
// and timeout model.
const (
	defaultServerPort           = 8080
	defaultServerTimeout        = 30 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultClientMailboxSize    = 256 // ~2s of data at typical TS chunk sizes/bitrates
	defaultClientReadTimeout    = 10 * time.Second
	defaultOnAirFreezeTimeout   = 5 * time.Second
	defaultStandbyFreezeTimeout = 20 * time.Second
	defaultTunerPreemptAttempts = 8
	defaultTunerPreemptInterval = 100 * time.Millisecond
	defaultPSIArchiverStopWait  = 3 * time.Second
	defaultSweepInterval        = 1 * time.Second
)

// Config holds all configuration for the relaycored daemon.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RelayCore RelayCoreConfig `mapstructure:"relay_core"`
}

// ServerConfig holds the reference HTTP host's listener configuration. The
// HTTP framing layer that streams bytes to viewers is an out-of-scope
// collaborator; this struct only configures the thin demo host in
// cmd/relaycored.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// RelayCoreConfig holds every tunable in the live stream core's
// concurrency/timeout model, plus the recording destination.
type RelayCoreConfig struct {
	// ClientMailboxSize is the drop-oldest high-water mark N for each
	// client's mailbox.
	ClientMailboxSize int `mapstructure:"client_mailbox_size"`
	// ClientReadTimeout is the read-silence duration after which a client
	// is evicted on the next broadcast (10s).
	ClientReadTimeout Duration `mapstructure:"client_read_timeout"`
	// OnAirFreezeTimeout is the no-chunk-written duration that trips a
	// restart while ONAir (5s).
	OnAirFreezeTimeout Duration `mapstructure:"onair_freeze_timeout"`
	// StandbyFreezeTimeout is the equivalent threshold while Standby (20s).
	StandbyFreezeTimeout Duration `mapstructure:"standby_freeze_timeout"`
	// TunerPreemptAttempts is the number of 100ms spins connect() performs
	// looking for an Idling sibling to preempt (8).
	TunerPreemptAttempts int `mapstructure:"tuner_preempt_attempts"`
	// TunerPreemptInterval is the sleep between spins (100ms).
	TunerPreemptInterval Duration `mapstructure:"tuner_preempt_interval"`
	// PSIArchiverStopTimeout bounds how long stopRecording waits for the
	// psisiarc subprocess to exit before abandoning it (3s).
	PSIArchiverStopTimeout Duration `mapstructure:"psi_archiver_stop_timeout"`
	// PSIArchiverPath is the path to the psisiarc binary.
	PSIArchiverPath string `mapstructure:"psi_archiver_path"`
	// RecordedFolders lists candidate recording destinations; the first
	// entry is used.
	RecordedFolders []string `mapstructure:"recorded_folders"`
	// SweepInterval is how often Registry.StartSweep's job logs aggregate
	// stream/viewer counts; zero disables it. Eviction and freeze detection
	// do not run on this interval.
	SweepInterval Duration `mapstructure:"sweep_interval"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with RELAYCORE_ and use underscores
// for nesting, e.g. RELAYCORE_RELAY_CORE_CLIENT_READ_TIMEOUT=10s.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/relaycored")
	}

	v.SetEnvPrefix("RELAYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("relay_core.client_mailbox_size", defaultClientMailboxSize)
	v.SetDefault("relay_core.client_read_timeout", defaultClientReadTimeout.String())
	v.SetDefault("relay_core.onair_freeze_timeout", defaultOnAirFreezeTimeout.String())
	v.SetDefault("relay_core.standby_freeze_timeout", defaultStandbyFreezeTimeout.String())
	v.SetDefault("relay_core.tuner_preempt_attempts", defaultTunerPreemptAttempts)
	v.SetDefault("relay_core.tuner_preempt_interval", defaultTunerPreemptInterval.String())
	v.SetDefault("relay_core.psi_archiver_stop_timeout", defaultPSIArchiverStopWait.String())
	v.SetDefault("relay_core.psi_archiver_path", "psisiarc")
	v.SetDefault("relay_core.recorded_folders", []string{})
	v.SetDefault("relay_core.sweep_interval", defaultSweepInterval.String())
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.RelayCore.ClientMailboxSize < 1 {
		return fmt.Errorf("relay_core.client_mailbox_size must be at least 1")
	}
	if c.RelayCore.TunerPreemptAttempts < 0 {
		return fmt.Errorf("relay_core.tuner_preempt_attempts must not be negative")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
