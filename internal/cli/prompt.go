package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForPath asks for a path on out and reads the answer from in.
// Returns def if the user enters nothing or input cannot be read.
func PromptForPath(in io.Reader, out io.Writer, label, def string) string {
	fmt.Fprintf(out, "%s [%s]: ", label, def)

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Str("default", def).Msg("Failed to read input, using default")
		return def
	}

	if input = strings.TrimSpace(input); input == "" {
		return def
	}
	return input
}
