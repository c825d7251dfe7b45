package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anime-shed/plategate-go/internal/container"
	apperrors "github.com/anime-shed/plategate-go/internal/errors"
	"github.com/anime-shed/plategate-go/internal/logger"
	"github.com/anime-shed/plategate-go/internal/observer"
	"github.com/anime-shed/plategate-go/internal/output"
	"github.com/anime-shed/plategate-go/internal/pool"
	"github.com/anime-shed/plategate-go/pkg/models"
)

const banner = `        __-----------__
      / _------------_ \
     / /              \ \
     | |               | |
     |_|_______________|_|
 /-\|                     |/-\
| _ |\         0         /| _ |
|(_)| \        !        / |(_)|
|___|__\_______!_______/__|___|
[_________|PLATEGATE|_________]
 ||||     ~~~~~~~~~~~     ||||
 ` + "`--'                     `--'" + `
`

func newGrabCommand(a *app) *cobra.Command {
	var (
		threads int
		outfile string
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "grab <canton> <start> [end]",
		Short: "Query the owners of one plate or a range of plates",
		Long: `Query the owners of plates start..end of a canton (AG, LU, SH, ZG, ZH).
Without end only start is queried. Results are written to the output file,
and uploaded to blob storage when PLATEGATE_AZURE_* is configured.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseGrabArgs(args)
			if err != nil {
				return err
			}
			req.Workers = a.cfg.Workers
			if cmd.Flags().Changed("threads") {
				// the service reads 0 as "use the default"
				if threads < 1 {
					return apperrors.NewValidationError("number of threads must be > 0", nil)
				}
				req.Workers = threads
			}

			c, err := container.NewContainer(a.cfg, "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !quiet {
				fmt.Fprint(out, banner)
			}

			report, err := c.LookupService().Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if len(report.Owners) > 0 {
				if err := store(cmd, c, report, outfile); err != nil {
					return err
				}
			}
			printSummary(out, report.Stats, output.Summary(report, outfile))
			return nil
		},
	}

	cmd.Flags().IntVarP(&threads, "threads", "t", 8, "number of concurrent portal sessions")
	cmd.Flags().StringVarP(&outfile, "outfile", "o", "results.txt", "file where the results are written")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the banner")
	return cmd
}

// parseGrabArgs converts positional arguments; range checks are left to the validator
func parseGrabArgs(args []string) (models.LookupRequest, error) {
	req := models.LookupRequest{Canton: args[0]}
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return req, apperrors.NewValidationError(fmt.Sprintf("start must be a number, got %q", args[1]), err)
	}
	req.Start = start
	if len(args) == 3 {
		end, err := strconv.Atoi(args[2])
		if err != nil {
			return req, apperrors.NewValidationError(fmt.Sprintf("end must be a number, got %q", args[2]), err)
		}
		req.End = end
	}
	return req, nil
}

func store(cmd *cobra.Command, c *container.Container, report *pool.Report, outfile string) error {
	sink, err := c.StorageFactory().CreateSink(filepath.Dir(outfile))
	if err != nil {
		return err
	}
	if err := sink.Put(cmd.Context(), filepath.Base(outfile), output.Render(report)); err != nil {
		return fmt.Errorf("failed to store results: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"run_id":       report.RunID,
		"owners_found": report.OwnerCount(),
		"outfile":      outfile,
		"sink":         sink.Name(),
	}).Info("Results stored")
	return nil
}

// printSummary closes a run with the summary, every login outcome in order and their tally
func printSummary(w io.Writer, stats observer.Snapshot, summary string) {
	fmt.Fprintf(w, "\n=== Summary ===\n%s\n", summary)
	fmt.Fprintf(w, "stats raw data (size %d): %v\n", len(stats.Outcomes), stats.Outcomes)
	logins := stats.LoginStats()
	fmt.Fprintf(w, "logins: %d first guess, %d later guess, %d failed\n",
		logins.FirstGuess, logins.LaterGuess, logins.Failed)
}
