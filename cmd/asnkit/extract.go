package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkovacs/asnkit/internal/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract marker-delimited ASN.1 blocks into .asn files",
	Long: `Extract scans each input document once, collecting every line strictly
between "-- ASN1START" and "-- ASN1STOP" marker lines, and writes the
concatenation to a sibling .asn file. Markers are matched by substring,
marker lines are excluded, and an unterminated trailing block is kept.

The output path replaces the input extension with .asn (spec.doc.txt
becomes spec.doc.asn) or appends .asn when there is none. Use --output
to override it for a single input, and --watch to re-run extraction
whenever the input changes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	watch, _ := cmd.Flags().GetBool("watch")
	debounce, _ := cmd.Flags().GetDuration("watch-debounce")

	if output != "" && len(args) > 1 {
		return fmt.Errorf("--output requires a single input file")
	}

	if watch {
		if len(args) != 1 {
			return fmt.Errorf("--watch requires a single input file")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return extract.Watch(ctx, args[0], outputPathFor(args[0], output), debounce, os.Stdout)
	}

	if len(args) == 1 {
		return extract.ExtractFile(args[0], outputPathFor(args[0], output), os.Stdout)
	}

	summary := extract.ExtractBatch(args, os.Stdout)
	if summary.HasFailures() {
		return fmt.Errorf("%d file(s) failed extraction", summary.Failed)
	}
	return nil
}

func outputPathFor(input, override string) string {
	if override != "" {
		return override
	}
	return extract.OutputPath(input)
}

func init() {
	extractCmd.Flags().String("output", "", "output path (single input only; default derived from the input path)")
	extractCmd.Flags().Bool("watch", false, "re-run extraction whenever the input changes")
	extractCmd.Flags().Duration("watch-debounce", 200*time.Millisecond, "quiet period before re-running after a change")

	rootCmd.AddCommand(extractCmd)
}
