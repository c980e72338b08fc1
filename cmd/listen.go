package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ColonelBlimp/morselink/internal/audio"
	"github.com/ColonelBlimp/morselink/internal/config"
	"github.com/ColonelBlimp/morselink/internal/dsp"
	"github.com/ColonelBlimp/morselink/internal/mqtt"
	"github.com/ColonelBlimp/morselink/internal/rx"
	"github.com/ColonelBlimp/morselink/internal/station"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Decode Morse code from a microphone or light sensor",
	Long: `Sample the selected source and decode what it hears. "microphone" listens
for the configured tone on an audio input; "mqtt" reads levels published by
a light sensor. The code trace is printed as it is decoded and the text is
printed when listening stops.

Press Ctrl+C, or type "q" and Enter, to stop. The letter in progress is
decoded on stop.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a recorded on/off timeline",
	Long: `Decode a timeline file instead of a live source. Each line holds a level
and a duration, for example "on 200ms" or "off 600ms". Lines starting with
"#" are ignored. Use "-" to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	listenCmd.Flags().String("source", "microphone", "input source: microphone or mqtt")
	flagKeys["source"] = "source"
	rootCmd.AddCommand(listenCmd, replayCmd)
}

func runListen(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	st, err := newStation(s)
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(s)
	if err != nil {
		return err
	}
	defer closeSource()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	session, err := st.Receive(ctx, src, printTrace(out))
	if err != nil {
		return err
	}

	keys := controls(cmd.InOrStdin())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		waitStopped(gctx, session.Done(), keys)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	printResult(out, st)
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	st, err := newStation(s)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open timeline: %w", err)
		}
		defer f.Close()
		in = f
	}

	samples, err := rx.ParseTimeline(in, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	session, err := st.Receive(cmd.Context(), rx.NewReplay(samples), printTrace(out))
	if err != nil {
		return err
	}
	<-session.Done()

	printResult(out, st)
	return nil
}

// openSource builds the configured source. The returned func releases it.
func openSource(s *config.Settings) (rx.Source, func(), error) {
	switch s.Source {
	case "mqtt":
		client, err := mqtt.NewClient(mqttConfig(s, "-sensor"))
		if err != nil {
			return nil, nil, err
		}
		return client.Sensor(s.MQTTSensorTopic), client.Close, nil
	default:
		return openMicrophone(s)
	}
}

func openMicrophone(s *config.Settings) (rx.Source, func(), error) {
	g, err := dsp.NewGoertzel(dsp.GoertzelConfig{
		TargetFrequency: s.ToneFrequency,
		SampleRate:      s.SampleRate,
		BlockSize:       s.BlockSize,
	})
	if err != nil {
		return nil, nil, err
	}
	meter, err := dsp.NewLevelMeter(dsp.LevelConfig{
		Threshold:       s.Threshold,
		AGCEnabled:      s.AGCEnabled,
		AGCDecay:        s.AGCDecay,
		AGCAttack:       s.AGCAttack,
		AGCWarmupBlocks: s.AGCWarmupBlocks,
	}, g)
	if err != nil {
		return nil, nil, err
	}

	actx, err := audio.NewContext()
	if err != nil {
		return nil, nil, err
	}
	mic, err := audio.NewMicrophone(actx, audioConfig(s), meter, s.SampleInterval())
	if err != nil {
		_ = actx.Close()
		return nil, nil, err
	}
	return mic, func() { _ = actx.Close() }, nil
}

// printTrace writes each code fragment as it is decoded.
func printTrace(out io.Writer) rx.UpdateCallback {
	return func(u rx.Update) {
		fmt.Fprint(out, u.Code)
	}
}

func printResult(out io.Writer, st *station.Station) {
	res := st.StopAll()
	fmt.Fprintf(out, "\ncode: %s\ntext: %s\n", res.Code, res.Text)
}
