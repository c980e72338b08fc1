// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/morselink/internal/morse"
	"github.com/ColonelBlimp/morselink/internal/tx"
)

const (
	AppName       = "morselink"
	ConfigType    = "yaml"
	EnvPrefix     = "MORSELINK"
	DefaultConfig = `# Morselink Configuration

# Timing
wpm: 6                  # Sending speed; 6 WPM is a 200ms unit
unit_ms: 0              # Explicit unit in ms, overrides wpm when > 0

# Receive thresholds, in units
noise_ratio: 0.25       # Marks shorter than this are noise
dit_dah_boundary: 1.75  # Marks at or above this are dashes
letter_boundary: 2.5    # Gaps above this close a letter
word_boundary: 6.0      # Gaps above this close a word

# Transmit
sink: "screen"          # screen, tone or lamp
loop: false             # Repeat the message until stopped
screen_width: 20        # Width of the screen flash bar
tone_frequency: 600     # Sidetone and receive tone in Hz
tone_volume: 0.5        # Sidetone amplitude (0.0-1.0)

# Receive
source: "microphone"    # microphone or mqtt
sample_interval_ms: 50  # How often the level is sampled

# Audio device settings
device_index: -1        # -1 for default device
sample_rate: 48000      # Audio sample rate in Hz
channels: 1             # Number of channels (1=mono)
buffer_size: 512        # Frames per audio callback

# Tone detection
block_size: 512         # Goertzel block size (samples per detection window)
threshold: 0.4          # Detection threshold (0.0-1.0), tone magnitude must exceed this
agc_enabled: true       # Enable automatic gain control (normalizes input levels)
agc_decay: 0.9995       # AGC peak decay rate per block
agc_attack: 0.1         # AGC attack rate (0.0-1.0), how fast to respond to louder signals
agc_warmup_blocks: 10   # Blocks used to calibrate AGC before detecting

# MQTT lamp and light sensor
mqtt_broker: "tcp://localhost:1883"
mqtt_client_id: "morselink"
mqtt_username: ""
mqtt_password: ""
mqtt_lamp_topic: "morselink/lamp"
mqtt_sensor_topic: "morselink/sensor"
mqtt_timeout_ms: 5000

# Output
log_level: "info"       # debug, info, warn or error
debug: false            # Shortcut for log_level debug
`
)

// Sources names the selectable receive sources.
var Sources = []string{"microphone", "mqtt"}

var logLevels = []string{"debug", "info", "warn", "error"}

// Settings holds all application configuration
type Settings struct {
	// Timing
	WPM    int `mapstructure:"wpm"`
	UnitMS int `mapstructure:"unit_ms"`

	// Receive thresholds
	NoiseRatio     float64 `mapstructure:"noise_ratio"`
	DitDahBoundary float64 `mapstructure:"dit_dah_boundary"`
	LetterBoundary float64 `mapstructure:"letter_boundary"`
	WordBoundary   float64 `mapstructure:"word_boundary"`

	// Transmit
	Sink          string  `mapstructure:"sink"`
	Loop          bool    `mapstructure:"loop"`
	ScreenWidth   int     `mapstructure:"screen_width"`
	ToneFrequency float64 `mapstructure:"tone_frequency"`
	ToneVolume    float64 `mapstructure:"tone_volume"`

	// Receive
	Source           string `mapstructure:"source"`
	SampleIntervalMS int    `mapstructure:"sample_interval_ms"`

	// Audio device settings
	DeviceIndex int     `mapstructure:"device_index"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Channels    int     `mapstructure:"channels"`
	BufferSize  int     `mapstructure:"buffer_size"`

	// Tone detection
	BlockSize       int     `mapstructure:"block_size"`
	Threshold       float64 `mapstructure:"threshold"`
	AGCEnabled      bool    `mapstructure:"agc_enabled"`
	AGCDecay        float64 `mapstructure:"agc_decay"`
	AGCAttack       float64 `mapstructure:"agc_attack"`
	AGCWarmupBlocks int     `mapstructure:"agc_warmup_blocks"`

	// MQTT
	MQTTBroker      string `mapstructure:"mqtt_broker"`
	MQTTClientID    string `mapstructure:"mqtt_client_id"`
	MQTTUsername    string `mapstructure:"mqtt_username"`
	MQTTPassword    string `mapstructure:"mqtt_password"`
	MQTTLampTopic   string `mapstructure:"mqtt_lamp_topic"`
	MQTTSensorTopic string `mapstructure:"mqtt_sensor_topic"`
	MQTTTimeoutMS   int    `mapstructure:"mqtt_timeout_ms"`

	// Output
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
}

func setDefaults() {
	viper.SetDefault("wpm", 6)
	viper.SetDefault("unit_ms", 0)
	viper.SetDefault("noise_ratio", 0.25)
	viper.SetDefault("dit_dah_boundary", 1.75)
	viper.SetDefault("letter_boundary", 2.5)
	viper.SetDefault("word_boundary", 6.0)
	viper.SetDefault("sink", string(tx.ChannelScreen))
	viper.SetDefault("loop", false)
	viper.SetDefault("screen_width", 20)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("tone_volume", 0.5)
	viper.SetDefault("source", "microphone")
	viper.SetDefault("sample_interval_ms", 50)
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("block_size", 512)
	viper.SetDefault("threshold", 0.4)
	viper.SetDefault("agc_enabled", true)
	viper.SetDefault("agc_decay", 0.9995)
	viper.SetDefault("agc_attack", 0.1)
	viper.SetDefault("agc_warmup_blocks", 10)
	viper.SetDefault("mqtt_broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt_client_id", AppName)
	viper.SetDefault("mqtt_username", "")
	viper.SetDefault("mqtt_password", "")
	viper.SetDefault("mqtt_lamp_topic", AppName+"/lamp")
	viper.SetDefault("mqtt_sensor_topic", AppName+"/sensor")
	viper.SetDefault("mqtt_timeout_ms", 5000)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("debug", false)
}

// Init initializes Viper with defaults, environment and config file.
// Config file search order: current directory, then ~/.config/morselink/.
// Environment variables (MORSELINK_WPM, ...) override the file; a .env file
// in the working directory is loaded first if present.
func Init() error {
	_ = godotenv.Load()

	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Timing returns the send timing: unit_ms when set, otherwise derived from wpm.
func (s *Settings) Timing() (morse.Timing, error) {
	if s.UnitMS > 0 {
		return morse.NewTiming(time.Duration(s.UnitMS) * time.Millisecond)
	}
	return morse.TimingFromWPM(s.WPM)
}

// Ratios returns the receive threshold ratios.
func (s *Settings) Ratios() morse.Ratios {
	return morse.Ratios{
		Noise:  s.NoiseRatio,
		DitDah: s.DitDahBoundary,
		Letter: s.LetterBoundary,
		Word:   s.WordBoundary,
	}
}

// SampleInterval is the receive sampling cadence.
func (s *Settings) SampleInterval() time.Duration {
	return time.Duration(s.SampleIntervalMS) * time.Millisecond
}

// MQTTTimeout bounds each broker round trip.
func (s *Settings) MQTTTimeout() time.Duration {
	return time.Duration(s.MQTTTimeoutMS) * time.Millisecond
}

// EffectiveLogLevel folds the debug flag into log_level.
func (s *Settings) EffectiveLogLevel() string {
	if s.Debug {
		return "debug"
	}
	return s.LogLevel
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Timing
	if s.UnitMS < 0 || s.UnitMS > 5000 {
		errs = append(errs, fmt.Errorf("unit_ms must be between 0 and 5000, got %d", s.UnitMS))
	}
	if s.UnitMS == 0 && (s.WPM < 1 || s.WPM > 60) {
		errs = append(errs, fmt.Errorf("wpm must be between 1 and 60, got %d", s.WPM))
	}
	if err := s.Ratios().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("receive ratios: %w", err))
	}

	// Transmit
	if _, err := tx.ParseChannel(s.Sink); err != nil {
		errs = append(errs, err)
	}
	if s.ScreenWidth < 1 || s.ScreenWidth > 200 {
		errs = append(errs, fmt.Errorf("screen_width must be between 1 and 200, got %d", s.ScreenWidth))
	}
	if s.ToneVolume < 0.0 || s.ToneVolume > 1.0 {
		errs = append(errs, fmt.Errorf("tone_volume must be between 0.0 and 1.0, got %v", s.ToneVolume))
	}

	// Receive
	if !slices.Contains(Sources, s.Source) {
		errs = append(errs, fmt.Errorf("source must be one of %s, got %q", strings.Join(Sources, ", "), s.Source))
	}
	if s.SampleIntervalMS < 1 || s.SampleIntervalMS > 1000 {
		errs = append(errs, fmt.Errorf("sample_interval_ms must be between 1 and 1000, got %d", s.SampleIntervalMS))
	}

	// Audio device settings
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}

	// Tone detection
	if s.ToneFrequency < 100 || s.ToneFrequency > 3000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 100 and 3000 Hz, got %v", s.ToneFrequency))
	}
	if s.BlockSize < 32 || s.BlockSize > 4096 {
		errs = append(errs, fmt.Errorf("block_size must be between 32 and 4096, got %d", s.BlockSize))
	}
	if s.BlockSize&(s.BlockSize-1) != 0 {
		errs = append(errs, fmt.Errorf("block_size should be a power of 2, got %d", s.BlockSize))
	}
	if s.Threshold < 0.0 || s.Threshold > 1.0 {
		errs = append(errs, fmt.Errorf("threshold must be between 0.0 and 1.0, got %v", s.Threshold))
	}
	if s.AGCDecay < 0.9 || s.AGCDecay > 0.99999 {
		errs = append(errs, fmt.Errorf("agc_decay must be between 0.9 and 0.99999, got %v", s.AGCDecay))
	}
	if s.AGCAttack < 0.0 || s.AGCAttack > 1.0 {
		errs = append(errs, fmt.Errorf("agc_attack must be between 0.0 and 1.0, got %v", s.AGCAttack))
	}
	if s.AGCWarmupBlocks < 0 || s.AGCWarmupBlocks > 1000 {
		errs = append(errs, fmt.Errorf("agc_warmup_blocks must be between 0 and 1000, got %d", s.AGCWarmupBlocks))
	}

	// Nyquist check: tone frequency must be less than half the sample rate
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}

	// MQTT
	if s.MQTTTimeoutMS < 100 || s.MQTTTimeoutMS > 60000 {
		errs = append(errs, fmt.Errorf("mqtt_timeout_ms must be between 100 and 60000, got %d", s.MQTTTimeoutMS))
	}

	// Output
	if !slices.Contains(logLevels, s.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of %s, got %q", strings.Join(logLevels, ", "), s.LogLevel))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

