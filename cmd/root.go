// cmd/root.go
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/morselink/internal/config"
	"github.com/ColonelBlimp/morselink/internal/station"
)

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Send and receive Morse code",
	Long: `Morselink encodes text to Morse code and sends it as a tone, a terminal
flash or a networked lamp, and decodes Morse code heard on a microphone or
seen by a networked light sensor.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"device":    "device_index",
	"frequency": "tone_frequency",
	"wpm":       "wpm",
	"unit":      "unit_ms",
	"log-level": "log_level",
	"debug":     "debug",
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("frequency", "f", 600, "tone frequency in Hz")
	rootCmd.PersistentFlags().IntP("wpm", "w", 6, "speed in words per minute")
	rootCmd.PersistentFlags().IntP("unit", "u", 0, "unit length in ms (overrides --wpm)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	bindFlags(rootCmd.PersistentFlags())
}

// bindFlags binds every known flag in fs to its config key. Flags take
// precedence over the environment and the config file once set.
func bindFlags(fs *pflag.FlagSet) {
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// loadSettings validates configuration and installs the logger.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	bindFlags(cmd.Flags())

	s, err := config.Get()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(s.EffectiveLogLevel()))
	return s, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newStation(s *config.Settings) (*station.Station, error) {
	timing, err := s.Timing()
	if err != nil {
		return nil, err
	}
	return station.New(timing, s.Ratios(), nil)
}
