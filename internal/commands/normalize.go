package commands

import (
	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"
	"github.com/boddenberg/wallet-activity-bfa/internal/service"

	"github.com/spf13/cobra"
)

type normalizeOutput struct {
	Items   []service.TransactionView `json:"items"`
	Total   int                       `json:"total"`
	Issues  map[string][]string       `json:"issues,omitempty"`
	Dropped int                       `json:"dropped,omitempty"`
}

func addFilterFlags(cmd *cobra.Command, f *domain.Filter) {
	cmd.Flags().StringVar(&f.Currency, "currency", "", "only this currency code")
	cmd.Flags().StringVar(&f.Status, "status", "", "only this status (successful, pending, failed)")
	cmd.Flags().StringVar(&f.Category, "category", "", "only this category, e.g. p2p_trade")
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "free-text match on counterpart, currency and network")
}

func newNormalizeCommand(opts *globalOptions) *cobra.Command {
	var filter domain.Filter

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Print the canonical records of a response dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.load(cmd)
			if err != nil {
				return err
			}
			visible := pipeline.Apply(d.records, filter)
			return printJSON(cmd, normalizeOutput{
				Items:   service.NewTransactionViews(visible),
				Total:   len(visible),
				Issues:  d.issues,
				Dropped: d.dropped,
			})
		},
	}

	addFilterFlags(cmd, &filter)
	return cmd
}
