package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/tui"
	"github.com/transformar/console/internal/types"
)

var wizardCmd = &cobra.Command{
	Use:     "wizard",
	Aliases: []string{"asistente"},
	Short:   "Interactive three-step flow: source, input, template",
	Long: `Walk through the three steps of a processing run.

  1. Pick a source (document, email, chat or free text)
  2. Provide the input (file path, pasted text, or a message and channel)
  3. Pick a template and process

Esc goes back one step; ctrl+c quits. Use 'transformar process' for scripts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		m := tui.New(ctx, newController(client), tui.Hooks{
			Submit:   submitRun,
			ReadFile: readUpload,
			Connect: func(k types.SourceKind) (string, error) {
				if err := sess.SetPendingIntegration(k); err != nil {
					return "", err
				}
				return settingsURL(k), nil
			},
			Connected: func(k types.SourceKind) {
				if pending, ok := sess.PendingIntegration(); ok && pending == k {
					if err := sess.ClearPendingIntegration(); err != nil {
						logger.Warn("clear pending integration", "error", err)
					}
				}
			},
		})

		final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
		if err != nil {
			return fmt.Errorf("run wizard: %w", err)
		}
		run := final.(tui.Model).Run()
		if run == nil {
			if !quietFlag {
				display.Notice("Asistente cancelado.")
			}
			return nil
		}
		renderRun(run)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(wizardCmd)
}
