package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/db"
	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/types"
)

var (
	historyStatus string
	historyLimit  int
)

type historyOutput struct {
	Total       int            `json:"total"`
	Completed   int            `json:"completed"`
	Failed      int            `json:"failed"`
	SuccessRate float64        `json:"success_rate"`
	BySource    map[string]int `json:"by_source"`
	Runs        []*db.RunRow   `json:"runs"`
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"procesados"},
	Short:   "List processed runs with status counts and success rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyStatus != "" && historyStatus != types.RunCompleted && historyStatus != types.RunFailed {
			return fmt.Errorf("invalid status %q (must be: completed, failed)", historyStatus)
		}

		byStatus, err := store.RunCountByStatus()
		if err != nil {
			return fmt.Errorf("status counts: %w", err)
		}
		bySource, err := store.RunCountBySource()
		if err != nil {
			return fmt.Errorf("source counts: %w", err)
		}
		runs, err := store.ListRuns(historyStatus, historyLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		completed, failed := byStatus[types.RunCompleted], byStatus[types.RunFailed]
		out := historyOutput{
			Total:       completed + failed,
			Completed:   completed,
			Failed:      failed,
			SuccessRate: successRate(completed, failed),
			BySource:    bySource,
			Runs:        runs,
		}
		if out.Runs == nil {
			out.Runs = []*db.RunRow{}
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}

		display.Header("Documentos procesados")
		fmt.Println()
		fmt.Printf("  Total       %4d\n", out.Total)
		fmt.Printf("  Completados %4d\n", completed)
		fmt.Printf("  Fallidos    %4d\n", failed)
		fmt.Printf("  Éxito       %5.1f%%\n", out.SuccessRate)
		fmt.Println()

		if len(bySource) > 0 {
			sources := make([]string, 0, len(bySource))
			for s := range bySource {
				sources = append(sources, s)
			}
			sort.Strings(sources)
			fmt.Println("  Por fuente")
			for _, s := range sources {
				fmt.Printf("    %-24s %4d\n", display.SourceBadge(types.SourceKind(s)), bySource[s])
			}
			fmt.Println()
		}

		if len(runs) == 0 {
			fmt.Println("  Todavía no se procesó nada.")
			return nil
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			detail := r.FileLabel
			if r.Status == types.RunFailed {
				detail = display.Truncate(r.Error, 50)
			}
			rows = append(rows, []string{
				display.StatusDot(r.Status) + " " + r.Status,
				r.SourceType,
				r.SelectedTemplate,
				display.Truncate(detail, 50),
				display.TimeAgo(r.CreatedAt),
			})
		}
		fmt.Println(display.Table([]string{"Estado", "Fuente", "Plantilla", "Archivo", "Cuándo"}, rows))
		return nil
	},
}

// successRate returns the completed share as a percentage.
func successRate(completed, failed int) float64 {
	total := completed + failed
	if total == 0 {
		return 0
	}
	return float64(completed) * 100 / float64(total)
}

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Filter by status (completed, failed)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
