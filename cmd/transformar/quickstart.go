package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/types"
)

var quickstartCmd = &cobra.Command{
	Use:   "quickstart",
	Short: "Quick start guide for transformar",
	Long:  "Display a quick start guide showing the common transformar workflows.",
	Run: func(cmd *cobra.Command, args []string) {
		b := display.Bold.Render
		a := display.Success.Render
		d := display.Dim.Render

		fmt.Printf("\n%s\n\n", b("transformar · Documentos, textos y mensajes a tablas"))
		fmt.Println("Pick a source, pick a template, get rows you can export as CSV.")
		fmt.Println()

		fmt.Println(b("GETTING STARTED"))
		fmt.Printf("  %s                 Create .transformar/session.db next to your .git root\n", a("transformar init"))
		fmt.Printf("  %s  Log in and store the session token\n", a("transformar login --email you@x.com"))
		fmt.Printf("  %s     Send a password recovery email\n\n", a("transformar recover EMAIL"))

		fmt.Println(b("SOURCES"))
		for _, k := range types.AllSources {
			fmt.Printf("  %-10s %s\n", a(string(k)), d(k.Hint()))
		}
		fmt.Println()
		fmt.Printf("  %s              Show which integrations are connected\n", a("transformar sources"))
		fmt.Printf("  %s       Link a messaging or email account\n", a("transformar connect gmail"))
		fmt.Printf("  %s      Browse the latest messages\n\n", a("transformar messages gmail"))

		fmt.Println(b("PROCESSING"))
		fmt.Printf("  %s               Interactive three-step flow\n", a("transformar wizard"))
		fmt.Printf("  %s            List the extraction templates\n", a("transformar templates"))
		fmt.Printf("  %s\n", a("transformar process --source document --file factura.pdf --template ID"))
		fmt.Printf("  %s\n", a(`transformar process --source text --text "..." --template ID`))
		fmt.Printf("  %s\n\n", a("transformar process --source telegram --message ID --template ID"))

		fmt.Println(b("RESULTS"))
		fmt.Printf("  %s              Show the last run\n", a("transformar results"))
		fmt.Printf("  %s       Save tabular rows as resultados_<fecha>.csv\n", a("transformar results export"))
		fmt.Printf("  %s              Past runs with success rate\n\n", a("transformar history"))

		fmt.Println(b("JSON OUTPUT"))
		fmt.Printf("  All commands support %s for machine-readable output:\n", a("--json"))
		fmt.Printf("  %s\n", a("transformar results --json"))
		fmt.Printf("  %s\n\n", a("transformar history --json"))

		fmt.Printf("%s Run %s to begin.\n\n", display.Success.Render("Ready!"), a("transformar wizard"))
	},
}

func init() {
	rootCmd.AddCommand(quickstartCmd)
}
