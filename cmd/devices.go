package cmd

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/morselink/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input and output devices",
	Long:  `List audio devices with the index to use for --device or device_index.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := loadSettings(cmd); err != nil {
			return err
		}

		actx, err := audio.NewContext()
		if err != nil {
			return err
		}
		defer actx.Close()

		out := cmd.OutOrStdout()
		for _, kind := range []struct {
			title string
			typ   malgo.DeviceType
		}{
			{"Capture", malgo.Capture},
			{"Playback", malgo.Playback},
		} {
			devices, err := actx.Devices(kind.typ)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s devices:\n", kind.title)
			for i, d := range devices {
				fmt.Fprintf(out, "  [%d] %s\n", i, d.Name())
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
