package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"salesdw/internal/datagen"
	"salesdw/internal/logging"
	"salesdw/internal/staging"
	"salesdw/internal/verify"
)

var (
	// ingest / run flags
	inputFile    string
	inputFormat  string
	inputEncode  string
	batchSize    int
	htmlSelector string
	skipBadRows  bool

	// seed flags
	seedRows  int
	seedOut   string
	seedValue uint64
	seedFrom  string
	seedTo    string
	seedDirty bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the staging, OLTP and warehouse tables if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		return s.runner.EnsureSchema(ctx)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a CSV or HTML export into the staging table",
	Long: `Ingest appends every data row of the input file to the staging table.

Headers may use the export's display titles ("Order ID", "Ship Mode") or
snake_case column names. Unknown columns are ignored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyIngestFlags(cmd)
		if err := cfg.ValidateIngest(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.runner.EnsureSchema(ctx); err != nil {
			return err
		}
		_, err = ingestFile(ctx, s, inputFile)
		return err
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Derive customer, product, order and order-line rows from staging",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		stats, err := s.runner.Normalize(ctx)
		if err != nil {
			return err
		}
		for _, st := range stats {
			fmt.Fprintf(cmd.OutOrStdout(), "%s candidates=%d affected=%d dropped=%d total=%d\n",
				st.Table, st.Candidates, st.Affected, st.Dropped, st.Total)
		}
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the warehouse dimensions and sales fact from OLTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		res, err := s.runner.Rebuild(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ship_modes=%d customers=%d products=%d dates=%d facts=%d dropped_facts=%d\n",
			res.ShipModes, res.Customers, res.Products, res.Dates, res.Facts, res.DroppedFacts)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Print row counts of every pipeline table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		report, err := s.runner.Verify(ctx)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline: [ingest], normalize, build, verify",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyIngestFlags(cmd)
		if inputFile != "" {
			if err := cfg.ValidateIngest(); err != nil {
				return err
			}
		}

		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		start := time.Now()
		if err := s.runner.EnsureSchema(ctx); err != nil {
			return err
		}
		if inputFile != "" {
			if _, err := ingestFile(ctx, s, inputFile); err != nil {
				return err
			}
		}

		sum, err := s.runner.Run(ctx)
		if err != nil {
			logging.Error().Err(err).Str("run_id", s.runID).Msg("Pipeline failed")
			return err
		}
		printReport(cmd.OutOrStdout(), sum.Report)
		logging.Info().
			Str("run_id", s.runID).
			Int64("facts", sum.Rebuild.Facts).
			Dur("duration", time.Since(start)).
			Msg("Pipeline complete")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write a synthetic sales export as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedRows < 0 {
			return fmt.Errorf("--rows must not be negative")
		}
		opts := datagen.Options{Rows: seedRows, Seed: seedValue, DirtyKeys: seedDirty}
		var err error
		if opts.From, err = parseDay(seedFrom); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		if opts.To, err = parseDay(seedTo); err != nil {
			return fmt.Errorf("--to: %w", err)
		}

		w := cmd.OutOrStdout()
		if seedOut != "" && seedOut != "-" {
			f, err := os.Create(seedOut)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := datagen.New(opts).WriteCSV(w); err != nil {
			return err
		}
		if seedOut != "" && seedOut != "-" {
			logging.Info().Int("rows", seedRows).Str("file", seedOut).Msg("Synthetic export written")
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, runCmd} {
		c.Flags().StringVarP(&inputFile, "file", "f", "", "input file (CSV or HTML export)")
		c.Flags().StringVar(&inputFormat, "format", "", "input format (csv, html, auto)")
		c.Flags().StringVar(&inputEncode, "encoding", "", "input text encoding (utf-8, windows-1252, latin1)")
		c.Flags().IntVar(&batchSize, "batch-size", 0, "rows per staging insert")
		c.Flags().StringVar(&htmlSelector, "html-selector", "", "CSS selector of the HTML table")
		c.Flags().BoolVar(&skipBadRows, "skip-bad-rows", false, "log and skip malformed CSV records")
	}
	_ = ingestCmd.MarkFlagRequired("file")

	seedCmd.Flags().IntVar(&seedRows, "rows", 1000, "number of data rows")
	seedCmd.Flags().StringVarP(&seedOut, "out", "o", "", "output file (default: stdout)")
	seedCmd.Flags().Uint64Var(&seedValue, "seed", 0, "random seed (0 = time based)")
	seedCmd.Flags().StringVar(&seedFrom, "from", "", "first order date (YYYY-MM-DD)")
	seedCmd.Flags().StringVar(&seedTo, "to", "", "last order date (YYYY-MM-DD)")
	seedCmd.Flags().BoolVar(&seedDirty, "dirty-keys", false, "pad some customer ids with whitespace")
}

// applyIngestFlags copies explicitly set ingest flags over the config.
func applyIngestFlags(cmd *cobra.Command) {
	if inputFormat != "" {
		cfg.Ingest.Format = inputFormat
	}
	if inputEncode != "" {
		cfg.Ingest.Encoding = inputEncode
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Ingest.BatchSize = batchSize
	}
	if htmlSelector != "" {
		cfg.Ingest.HTMLSelector = htmlSelector
	}
}

func ingestFile(ctx context.Context, s *session, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	src, err := newReader(cfg.Ingest.Format, f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return s.runner.Ingest(ctx, src)
}

// newReader builds the staging reader for format, sniffing the input when
// format is auto.
func newReader(format string, r io.Reader) (staging.Reader, error) {
	if format == staging.FormatAuto {
		var err error
		if format, r, err = staging.Peek(r); err != nil {
			return nil, err
		}
		logging.Debug().Str("format", format).Msg("Detected input format")
	}

	switch format {
	case staging.FormatHTML:
		dec, err := staging.Decode(r, cfg.Ingest.Encoding)
		if err != nil {
			return nil, err
		}
		return staging.NewHTMLReader(dec, cfg.Ingest.HTMLSelector)
	default:
		opts := staging.CSVOptions{Encoding: cfg.Ingest.Encoding}
		if skipBadRows {
			opts.OnError = func(line int, err error) {
				logging.Warn().Int("line", line).Err(err).Msg("Skipping malformed record")
			}
		}
		return staging.NewCSVReader(r, opts)
	}
}

func printReport(w io.Writer, report verify.Report) {
	for _, tc := range report {
		fmt.Fprintf(w, "%-28s %d\n", tc.Table, tc.Rows)
	}
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
