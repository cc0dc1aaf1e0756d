package commands

import (
	"strings"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"
	"github.com/boddenberg/wallet-activity-bfa/internal/service"

	"github.com/spf13/cobra"
)

type summaryOutput struct {
	service.TotalsView
	ByCurrency []service.TotalsView `json:"byCurrency,omitempty"`
	Records    int                  `json:"records"`
}

func newSummaryCommand(opts *globalOptions) *cobra.Command {
	var filter domain.Filter
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total incoming and outgoing amounts of a response dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.load(cmd)
			if err != nil {
				return err
			}
			filtered := pipeline.Apply(d.records, filter)

			var totals domain.SummaryTotals
			if !localOnly && pipeline.SourceComparable(filter) {
				totals = pipeline.SummarizeWithSource(filtered, d.summary)
			} else {
				totals = pipeline.Summarize(filtered)
			}
			if totals.Currency == "" {
				totals.Currency = service.SingleCurrency(filter, filtered)
			}

			out := summaryOutput{TotalsView: service.NewTotalsView(totals), Records: len(filtered)}
			if strings.TrimSpace(filter.Currency) == "" || strings.EqualFold(filter.Currency, domain.FilterAll) {
				for _, t := range pipeline.SummarizeByCurrency(filtered) {
					out.ByCurrency = append(out.ByCurrency, service.NewTotalsView(t))
				}
			}
			return printJSON(cmd, out)
		},
	}

	addFilterFlags(cmd, &filter)
	cmd.Flags().BoolVar(&localOnly, "local", false, "ignore totals embedded in the dump")
	return cmd
}
