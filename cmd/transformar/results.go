package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/results"
	"github.com/transformar/console/internal/types"
)

var (
	exportDir       string
	resultsCompiled bool
)

var resultsCmd = &cobra.Command{
	Use:     "results",
	Aliases: []string{"resultados"},
	Short:   "Show the results of the last processing run",
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := sess.LastRun()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), run)
		}
		renderRun(run)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the tabular results of the last run as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := sess.LastRun()
		if err != nil {
			return err
		}
		dir := exportDir
		if dir == "" {
			dir = cfg.ExportDir
		}

		path, err := results.Export(dir, run.Results, time.Now())
		if errors.Is(err, results.ErrNothingToExport) {
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{"status": "nothing_to_export"})
			}
			display.Notice("No hay datos tabulares para exportar.")
			return nil
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"status": "exported", "path": path})
		}
		if !quietFlag {
			display.SuccessMsg("Exportado %s", path)
		}
		return nil
	},
}

// renderRun prints the summary header and every entry of run.
func renderRun(run *types.Run) {
	fmt.Println()
	display.Header("Resultados")
	fmt.Printf("  %s %s   %s %s   %s %d   %s\n",
		display.Muted.Render("Fuente:"), display.SourceBadge(run.SourceType),
		display.Muted.Render("Plantilla:"), run.SelectedTemplate,
		display.Muted.Render("Archivos:"), run.FileCount,
		display.Dim.Render(display.TimeAgo(run.When)),
	)
	fmt.Println()

	tabular := false
	for i, e := range results.Entries(run) {
		label := e.FileLabel
		if label == "" {
			label = fmt.Sprintf("Entrada #%d", i+1)
		}
		display.Header(fmt.Sprintf("%d. %s", i+1, label))
		if resultsCompiled && (e.Compiled.ExtractInstr != "" || e.Compiled.TransformInstr != "") {
			fmt.Printf("  %s %s\n", display.Muted.Render("Extracción:"), e.Compiled.ExtractInstr)
			fmt.Printf("  %s %s\n", display.Muted.Render("Transformación:"), e.Compiled.TransformInstr)
		}
		switch {
		case e.Tabular && len(e.Rows) > 0:
			tabular = true
			fmt.Println(display.Table(e.Columns, e.Rows))
		case e.Tabular:
			fmt.Printf("  %s\n", display.Dim.Render("(sin filas)"))
		default:
			for _, line := range strings.Split(e.Text, "\n") {
				fmt.Printf("  %s\n", line)
			}
		}
		fmt.Println()
	}
	if tabular {
		fmt.Printf("  %s\n", display.Dim.Render("Use 'transformar results export' to save these rows as CSV."))
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Directory for the CSV file (default from config)")
	resultsCmd.PersistentFlags().BoolVar(&resultsCompiled, "compiled", false, "Show the compiled extraction and transformation instructions")
	resultsCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resultsCmd)
}
