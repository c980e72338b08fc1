package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ColonelBlimp/morselink/internal/audio"
	"github.com/ColonelBlimp/morselink/internal/config"
	"github.com/ColonelBlimp/morselink/internal/dsp"
	"github.com/ColonelBlimp/morselink/internal/mqtt"
	"github.com/ColonelBlimp/morselink/internal/tx"
)

var sendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Transmit text as Morse code",
	Long: `Encode text and transmit it on the selected sink: "screen" flashes a bar
in the terminal, "tone" plays a sidetone and "lamp" switches an MQTT lamp.

While sending, type "l" and Enter to toggle looping or "q" and Enter to stop.
A stop never cuts a dot or dash short.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringP("sink", "s", string(tx.ChannelScreen), "output sink: screen, tone or lamp")
	sendCmd.Flags().BoolP("loop", "l", false, "repeat the message until stopped")
	sendCmd.Flags().Bool("code", false, "arguments are already Morse code")
	flagKeys["sink"] = "sink"
	flagKeys["loop"] = "loop"
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	st, err := newStation(s)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sink, closeSink, err := openSink(s, out)
	if err != nil {
		return err
	}
	defer closeSink()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := strings.Join(args, " ")
	asCode, _ := cmd.Flags().GetBool("code")

	var run *tx.Run
	code := input
	if asCode {
		run, err = st.Transmit(ctx, code, sink, s.Loop)
	} else {
		run, code, err = st.TransmitText(ctx, input, sink, s.Loop)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, code)

	keys := controls(cmd.InOrStdin())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(run.Wait)
	g.Go(func() error {
		for {
			select {
			case <-run.Done():
				return nil
			case <-gctx.Done():
				run.Stop()
				return nil
			case key, ok := <-keys:
				if !ok {
					keys = nil
					continue
				}
				switch key {
				case "l":
					run.SetLoop(!run.Looping())
					slog.Info("loop toggled", "loop", run.Looping())
				case "q":
					run.Stop()
				}
			}
		}
	})

	err = g.Wait()
	fmt.Fprintln(out)
	slog.Debug("send finished", "run", run.ID(), "passes", run.Passes())
	return err
}

// openSink builds the configured sink. The returned func releases it.
func openSink(s *config.Settings, out io.Writer) (tx.Sink, func(), error) {
	channel, err := tx.ParseChannel(s.Sink)
	if err != nil {
		return nil, nil, err
	}

	switch channel {
	case tx.ChannelTone:
		return openTone(s)
	case tx.ChannelLamp:
		client, err := mqtt.NewClient(mqttConfig(s, "-lamp"))
		if err != nil {
			return nil, nil, err
		}
		return client.Lamp(s.MQTTLampTopic), client.Close, nil
	default:
		return tx.NewScreenSink(out, s.ScreenWidth), func() {}, nil
	}
}

func openTone(s *config.Settings) (tx.Sink, func(), error) {
	osc, err := dsp.NewOscillator(dsp.OscillatorConfig{
		Frequency:  s.ToneFrequency,
		SampleRate: s.SampleRate,
		Amplitude:  s.ToneVolume,
	})
	if err != nil {
		return nil, nil, err
	}

	actx, err := audio.NewContext()
	if err != nil {
		return nil, nil, err
	}
	tone, err := audio.NewTone(actx, audioConfig(s), osc)
	if err == nil {
		err = tone.Open()
	}
	if err != nil {
		_ = actx.Close()
		return nil, nil, fmt.Errorf("open tone output: %w", err)
	}

	return tone, func() {
		_ = tone.Close()
		_ = actx.Close()
	}, nil
}

func audioConfig(s *config.Settings) audio.Config {
	return audio.Config{
		DeviceIndex: s.DeviceIndex,
		SampleRate:  uint32(s.SampleRate),
		Channels:    uint32(s.Channels),
		BufferSize:  uint32(s.BufferSize),
	}
}

func mqttConfig(s *config.Settings, suffix string) mqtt.ClientConfig {
	return mqtt.ClientConfig{
		Broker:   s.MQTTBroker,
		ClientID: s.MQTTClientID + suffix,
		Username: s.MQTTUsername,
		Password: s.MQTTPassword,
		Timeout:  s.MQTTTimeout(),
	}
}

// controls delivers trimmed, lower-cased input lines. The channel closes at
// EOF. The reader goroutine is abandoned when the command returns.
func controls(in io.Reader) <-chan string {
	keys := make(chan string)
	go func() {
		defer close(keys)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			keys <- strings.ToLower(strings.TrimSpace(scanner.Text()))
		}
	}()
	return keys
}

// waitStopped blocks until done closes, ctx ends or "q" is entered.
func waitStopped(ctx context.Context, done <-chan struct{}, keys <-chan string) {
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case key, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			if key == "q" {
				return
			}
		}
	}
}
