package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anime-shed/plategate-go/internal/captcha"
	"github.com/anime-shed/plategate-go/internal/factory"
	"github.com/anime-shed/plategate-go/internal/ocr"
)

func newCalibrateCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "calibrate <dir>",
		Short: "Measure OCR accuracy on labelled captchas",
		Long: `Every image in dir is denoised and recognised. The expected text is the
file name up to the first underscore, so K7P2Q.png and K7P2Q_2.gif are both K7P2Q.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := factory.NewEngineFactory(a.cfg).CreateEngine()
			if err != nil {
				return err
			}
			report, err := ocr.Calibrate(cmd.Context(), engine, captcha.NewDenoiser(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Fprintf(out, "engine:   %s\n", engine.Name())
			fmt.Fprintf(out, "samples:  %d\n", report.Samples)
			fmt.Fprintf(out, "exact:    %d (%.1f%%)\n", report.Exact, report.Accuracy*100)
			fmt.Fprintf(out, "CER:      %.4f\n", report.CER)
			fmt.Fprintf(out, "WER:      %.4f\n", report.WER)
			for _, miss := range report.Misses {
				fmt.Fprintf(out, "miss %s: expected %q, got %q\n", miss.Source, miss.Expected, miss.Got)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
