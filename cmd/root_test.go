package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/morselink/internal/config"
)

// isolate points config lookups at a temp dir and returns it.
func isolate(t *testing.T, configYAML string) string {
	t.Helper()
	viper.Reset()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	configDir := filepath.Join(tmpDir, ".config", config.AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return tmpDir
}

// resetFlags restores every flag to its default so runs do not leak.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HasExpectedFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name         string
		shorthand    string
		defaultValue string
	}{
		{"device", "d", "-1"},
		{"frequency", "f", "600"},
		{"wpm", "w", "6"},
		{"unit", "u", "0"},
		{"log-level", "", "info"},
		{"debug", "D", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("flag %q default = %q, want %q", tt.name, flag.DefValue, tt.defaultValue)
			}
			if flag.Usage == "" {
				t.Errorf("flag %q has no description", tt.name)
			}
			if _, ok := flagKeys[tt.name]; !ok {
				t.Errorf("flag %q is not bound to a config key", tt.name)
			}
		})
	}
}

func TestRootCmd_Properties(t *testing.T) {
	if rootCmd.Use != "morselink" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "morselink")
	}
	if rootCmd.Short == "" || rootCmd.Long == "" {
		t.Error("rootCmd descriptions are empty")
	}

	want := []string{"encode", "decode", "send", "listen", "replay", "devices", "config"}
	for _, name := range want {
		if c, _, err := rootCmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	isolate(t, "")

	output, err := execute(t, "", "--help")
	if err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}
	for _, want := range []string{"morselink", "--wpm", "send", "listen"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestInitConfig(t *testing.T) {
	isolate(t, "wpm: 20")

	initConfig()

	if viper.GetInt("wpm") != 20 {
		t.Errorf("viper.GetInt(wpm) = %d, want 20", viper.GetInt("wpm"))
	}
}

func TestEncodeCmd(t *testing.T) {
	isolate(t, "")

	output, err := execute(t, "", "encode", "SOS", "help")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if want := "... --- ... / .... . .-.. .--.\n"; output != want {
		t.Errorf("encode output = %q, want %q", output, want)
	}
}

func TestEncodeCmd_Stdin(t *testing.T) {
	isolate(t, "")

	output, err := execute(t, "e\nt\n", "encode")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if output != ".\n-\n" {
		t.Errorf("encode output = %q, want %q", output, ".\n-\n")
	}
}

func TestDecodeCmd(t *testing.T) {
	isolate(t, "")

	output, err := execute(t, "", "decode", ".- / -... ........")
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if output != "A B?\n" {
		t.Errorf("decode output = %q, want %q", output, "A B?\n")
	}
}

func TestSendCmd_Screen(t *testing.T) {
	isolate(t, "")

	output, err := execute(t, "", "send", "--unit", "5", "--sink", "screen", "et")
	if err != nil {
		t.Fatalf("send error = %v", err)
	}
	if !strings.HasPrefix(output, ". -\n") {
		t.Errorf("send output %q does not start with the code", output)
	}
	if strings.Count(output, "\r"+strings.Repeat("█", 20)) != 2 {
		t.Errorf("send output %q, want two flashes", output)
	}
}

func TestSendCmd_Code(t *testing.T) {
	isolate(t, "screen_width: 4\n")

	output, err := execute(t, "", "send", "--unit", "5", "--code", "..")
	if err != nil {
		t.Fatalf("send error = %v", err)
	}
	if strings.Count(output, "████") != 2 {
		t.Errorf("send output %q, want two flashes", output)
	}
}

func TestSendCmd_Errors(t *testing.T) {
	isolate(t, "")

	if _, err := execute(t, "", "send", "--sink", "smoke", "hi"); err == nil || !strings.Contains(err.Error(), "smoke") {
		t.Errorf("send with unknown sink error = %v", err)
	}
	if _, err := execute(t, "", "send", "--unit", "5", "#"); err == nil {
		t.Error("send with nothing to transmit error = nil")
	}
	if _, err := execute(t, "", "send"); err == nil {
		t.Error("send without text error = nil")
	}
}

func TestReplayCmd(t *testing.T) {
	tmpDir := isolate(t, "")

	timeline := "# A, word gap, E\non 200ms\noff 200ms\non 600ms\noff 1400ms\non 200ms\noff 800ms\n"
	path := filepath.Join(tmpDir, "a_e.txt")
	if err := os.WriteFile(path, []byte(timeline), 0644); err != nil {
		t.Fatalf("failed to write timeline: %v", err)
	}

	output, err := execute(t, "", "replay", path)
	if err != nil {
		t.Fatalf("replay error = %v", err)
	}
	if !strings.Contains(output, "code: .- / . \n") || !strings.Contains(output, "text: A E\n") {
		t.Errorf("replay output = %q", output)
	}
}

func TestReplayCmd_Stdin(t *testing.T) {
	isolate(t, "")

	output, err := execute(t, "on 600ms\noff 200ms\non 600ms\noff 800ms\n", "replay", "-")
	if err != nil {
		t.Fatalf("replay error = %v", err)
	}
	if !strings.Contains(output, "text: M\n") {
		t.Errorf("replay output = %q", output)
	}
}

func TestReplayCmd_Errors(t *testing.T) {
	isolate(t, "")

	if _, err := execute(t, "", "replay", "missing.txt"); err == nil {
		t.Error("replay of missing file error = nil")
	}
	if _, err := execute(t, "blink 200ms\n", "replay", "-"); err == nil {
		t.Error("replay of malformed timeline error = nil")
	}
}

func TestConfigCmd(t *testing.T) {
	isolate(t, "wpm: 12\n")
	t.Setenv("MORSELINK_MQTT_PASSWORD", "hunter2")

	output, err := execute(t, "", "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	for _, want := range []string{"config.yaml", "wpm: 12", "sink: screen", masked} {
		if !strings.Contains(output, want) {
			t.Errorf("config output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "hunter2") {
		t.Error("config output leaks the mqtt password")
	}
}

func TestInvalidConfig(t *testing.T) {
	isolate(t, "threshold: 2.0\n")

	_, err := execute(t, "", "encode", "e")
	if err != nil {
		t.Fatalf("encode does not need validated settings, error = %v", err)
	}

	_, err = execute(t, "", "send", "e")
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("send with invalid config error = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(tt.level)
			if !logger.Enabled(context.Background(), tt.want) {
				t.Errorf("level %v disabled", tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-4) {
				t.Errorf("level below %v enabled", tt.want)
			}
		})
	}
}
