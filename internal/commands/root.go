// Package commands implements activityctl, an offline companion to the BFA
// that runs the normalization pipeline over a saved wallet API response.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/observability"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type globalOptions struct {
	file     string
	endpoint string
	logLevel string
	logger   *zap.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "activityctl",
		Short:   "Normalize, total and chart saved wallet activity",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = observability.NewLogger(opts.logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.file, "file", "f", "-", "wallet API response dump (- for stdin)")
	rootCmd.PersistentFlags().StringVar(&opts.endpoint, "endpoint", "", "endpoint the dump came from, e.g. deposits/crypto")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug for console output)")

	rootCmd.AddCommand(newNormalizeCommand(opts))
	rootCmd.AddCommand(newSummaryCommand(opts))
	rootCmd.AddCommand(newChartCommand(opts))

	return rootCmd
}

// dump is a decoded response file with its records normalized.
type dump struct {
	records []domain.CanonicalTransaction
	issues  map[string][]string
	summary *domain.RawSummary
	ranges  []domain.RawRange
	dropped int
}

func (o *globalOptions) load(cmd *cobra.Command) (*dump, error) {
	data, err := o.read(cmd.InOrStdin())
	if err != nil {
		return nil, err
	}

	resp, err := domain.DecodeResponse(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", o.file, err)
	}

	var hint domain.Category
	if o.endpoint != "" {
		hint = domain.Endpoint(o.endpoint).Hint()
		if hint == "" {
			return nil, &domain.ErrValidation{Field: "endpoint", Message: fmt.Sprintf("unknown record endpoint %q", o.endpoint)}
		}
	}
	for i := range resp.Records {
		resp.Records[i].SourceHint = hint
	}

	records, issues := pipeline.NormalizeAll(resp.Records)
	for id, list := range issues {
		o.log().Warn("malformed record", zap.String("id", id), zap.Strings("issues", list))
	}
	if resp.Dropped > 0 {
		o.log().Warn("dropped non-object entries", zap.Int("count", resp.Dropped))
	}
	return &dump{
		records: records,
		issues:  issues,
		summary: resp.Summary,
		ranges:  resp.Ranges,
		dropped: resp.Dropped,
	}, nil
}

func (o *globalOptions) read(stdin io.Reader) ([]byte, error) {
	if o.file == "" || o.file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(o.file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", o.file, err)
	}
	return data, nil
}

func (o *globalOptions) log() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "tz", Message: err.Error()}
	}
	return loc, nil
}
