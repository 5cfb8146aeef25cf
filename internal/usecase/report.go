package usecase

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"StockSense/internal/domain/models"
)

// FormatSummary renders a bulk run as plain text with the top models by R².
func FormatSummary(s *models.Summary, top int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Training summary: %s\n", s.Market)
	fmt.Fprintf(&b, "  date:       %s\n", s.TrainingDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  total:      %d\n", s.TotalStocks)
	fmt.Fprintf(&b, "  successful: %d\n", s.Successful)
	fmt.Fprintf(&b, "  failed:     %d\n", s.Failed)
	fmt.Fprintf(&b, "  duration:   %.1fs\n", s.Duration)

	if len(s.Models) > 0 {
		ranked := append([]models.Metadata(nil), s.Models...)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].R2Score > ranked[j].R2Score })
		if top > 0 && len(ranked) > top {
			ranked = ranked[:top]
		}
		fmt.Fprintf(&b, "\nTop %d models by R²:\n", len(ranked))
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tsymbol\tr2\ttest_mae\ttest_loss\tsamples\tepochs")
		for i, m := range ranked {
			fmt.Fprintf(tw, "  %d\t%s\t%.4f\t%.4f\t%.6f\t%d\t%d\n",
				i+1, m.Symbol, m.R2Score, m.TestMAE, m.TestLoss, m.TrainingSamples, m.EpochsRun)
		}
		tw.Flush()
	}

	if len(s.Failures) > 0 {
		b.WriteString("\nFailed:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  %s: %s (%s)\n", f.Symbol, f.Kind, f.Reason)
		}
	}
	return b.String()
}
