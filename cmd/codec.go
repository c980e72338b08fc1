package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/morselink/internal/morse"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [text...]",
	Short: "Print the Morse code for text",
	Long: `Encode text to Morse code. Letters are separated by a space and words by
" / ". Characters without a Morse code are dropped. With no arguments each
line of standard input is encoded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachInput(cmd, args, morse.TextToCode)
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode [code...]",
	Short: "Print the text for a Morse code string",
	Long: `Decode a Morse code string of dots, dashes, single spaces between letters
and "/" between words. Unknown letters decode to "?". With no arguments each
line of standard input is decoded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachInput(cmd, args, morse.CodeToText)
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd, decodeCmd)
}

// eachInput applies convert to the joined arguments, or to every line of
// stdin when there are none.
func eachInput(cmd *cobra.Command, args []string, convert func(string) string) error {
	out := cmd.OutOrStdout()
	if len(args) > 0 {
		_, err := fmt.Fprintln(out, convert(strings.Join(args, " ")))
		return err
	}
	return eachLine(cmd.InOrStdin(), out, convert)
}

func eachLine(in io.Reader, out io.Writer, convert func(string) string) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(out, convert(scanner.Text())); err != nil {
			return err
		}
	}
	return scanner.Err()
}
