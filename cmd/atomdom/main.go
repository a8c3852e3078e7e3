package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atomdom/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌┬┐┌─┐┌┬┐┌┬┐┌─┐┌┬┐
  ├─┤ │ │ ││││ │││ ││││
  ┴ ┴ ┴ └─┘┴ ┴─┴┘└─┘┴ ┴
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "atomdom",
		Short: "Reactive atoms and a keyed tree reconciler",
		Long: `atomdom drives tree reconciliation from reactive state.

Commands work on trees stored as JSON:

  • diff     print the patch script between two trees
  • render   write a tree as HTML
  • bench    measure keyed list reconciliation
  • serve    run a live view and stream its patches over WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				errors.DisableColors()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		diffCmd(),
		renderCmd(),
		benchCmd(),
		serveCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
