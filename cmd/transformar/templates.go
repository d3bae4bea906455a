package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/display"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"plantillas"},
	Short:   "List the extraction templates defined in the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		tpls, err := client.ListTemplates(ctx)
		if err != nil {
			return fmt.Errorf("list templates: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), tpls)
		}
		if len(tpls) == 0 {
			fmt.Println("No hay plantillas disponibles.")
			return nil
		}

		rows := make([][]string, 0, len(tpls))
		for _, t := range tpls {
			desc := ""
			if t.Description != nil {
				desc = display.Truncate(*t.Description, 60)
			}
			rows = append(rows, []string{t.ID, t.Name, desc})
		}
		display.Header(fmt.Sprintf("Plantillas (%d)", len(tpls)))
		fmt.Println(display.Table([]string{"ID", "Nombre", "Descripción"}, rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
