package commands

import (
	"fmt"
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"
	"github.com/boddenberg/wallet-activity-bfa/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type chartFlags struct {
	period string
	start  string
	end    string
	now    string
	tz     string
}

func newChartCommand(opts *globalOptions) *cobra.Command {
	var filter domain.Filter
	var f chartFlags

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Bucket a response dump into a day, week, month or custom chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}

			d, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if req.Period == domain.PeriodCustom {
				subs, skipped := pipeline.ParseSubRanges(d.ranges, req.Now.Location())
				if skipped > 0 {
					opts.log().Warn("skipped unreadable sub-ranges", zap.Int("count", skipped))
				}
				req.SubRanges = subs
			}

			out, err := service.NewChartView(pipeline.Apply(d.records, filter), filter, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	addFilterFlags(cmd, &filter)
	cmd.Flags().StringVar(&f.period, "period", "week", "day, week, month or custom")
	cmd.Flags().StringVar(&f.start, "start", "", "custom range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "custom range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.now, "now", "", "anchor time for day/week/month (RFC3339, default current time)")
	cmd.Flags().StringVar(&f.tz, "tz", "UTC", "IANA time zone for bucketing")
	return cmd
}

// request validates the flags into a chart request. A custom range is
// checked before the dump is read.
func (f chartFlags) request() (domain.ChartRequest, error) {
	period, ok := domain.ParsePeriod(f.period)
	if !ok {
		return domain.ChartRequest{}, &domain.ErrValidation{Field: "period", Message: fmt.Sprintf("unknown period %q", f.period)}
	}
	loc, err := loadLocation(f.tz)
	if err != nil {
		return domain.ChartRequest{}, err
	}

	now := time.Now().In(loc)
	if f.now != "" {
		t, err := time.Parse(time.RFC3339, f.now)
		if err != nil {
			return domain.ChartRequest{}, &domain.ErrValidation{Field: "now", Message: "must be RFC3339"}
		}
		now = t.In(loc)
	}

	req := domain.ChartRequest{Period: period, Now: now}
	if period == domain.PeriodCustom {
		if f.start == "" || f.end == "" {
			return domain.ChartRequest{}, &domain.ErrValidation{Field: "range", Message: "custom period requires --start and --end"}
		}
		start, err := pipeline.ParseRangeDate("start", f.start, loc)
		if err != nil {
			return domain.ChartRequest{}, err
		}
		end, err := pipeline.ParseRangeDate("end", f.end, loc)
		if err != nil {
			return domain.ChartRequest{}, err
		}
		r := pipeline.SwapRange(domain.DateRange{Start: start, End: end})
		req.Range = &r
	}
	return req, nil
}
