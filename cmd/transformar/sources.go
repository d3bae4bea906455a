package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/types"
)

type sourceStatus struct {
	Source      types.SourceKind `json:"source"`
	Title       string           `json:"title"`
	Hint        string           `json:"hint"`
	Integration bool             `json:"integration"`
	Connected   *bool            `json:"connected,omitempty"`
	Pending     bool             `json:"pending,omitempty"`
	Error       string           `json:"error,omitempty"`
}

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Aliases: []string{"fuentes"},
	Short:   "List input sources and the connection state of integrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		pending, hasPending := sess.PendingIntegration()

		out := make([]sourceStatus, 0, len(types.AllSources))
		for _, k := range types.AllSources {
			s := sourceStatus{Source: k, Title: k.Title(), Hint: k.Hint(), Integration: k.IsMessaging()}
			if k.IsMessaging() {
				ok, err := client.IntegrationStatus(ctx, k)
				if err != nil {
					s.Error = err.Error()
				} else {
					s.Connected = &ok
					if ok && hasPending && pending == k {
						// Connection completed since 'connect' was run.
						sess.ClearPendingIntegration()
						hasPending = false
					}
				}
				s.Pending = hasPending && pending == k
			}
			out = append(out, s)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}

		display.Header("Fuentes")
		fmt.Println()
		for _, s := range out {
			state := display.Dim.Render("siempre disponible")
			switch {
			case s.Error != "":
				state = display.ErrStyle.Render("error: " + s.Error)
			case s.Connected != nil && *s.Connected:
				state = display.StatusDot("connected") + " " + display.Success.Render("Conectado")
			case s.Pending:
				state = display.StatusDot("pending") + " " + display.Warn.Render("Pendiente de conexión")
			case s.Connected != nil:
				state = display.StatusDot("") + " " + display.Dim.Render("Desconectado")
			}
			fmt.Printf("  %-10s %-24s %s\n", s.Source, display.SourceBadge(s.Source), state)
			fmt.Printf("  %-10s %s\n", "", display.Dim.Render(s.Hint))
		}
		fmt.Println()
		fmt.Printf("  %s\n", display.Dim.Render("Use 'transformar connect SOURCE' to link an account, 'transformar wizard' to start."))
		return nil
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect SOURCE",
	Short: "Start connecting a messaging or email account",
	Long: `Mark an integration as pending and show where to authorize it.

Accounts are authorized in the backend's settings page. 'transformar sources'
clears the pending marker once the backend reports the source as connected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := types.ParseSourceKind(args[0])
		if err != nil {
			return err
		}
		if err := sess.SetPendingIntegration(k); err != nil {
			return err
		}

		settings := settingsURL(k)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"source":   string(k),
				"status":   "pending",
				"settings": settings,
			})
		}
		display.Notice("Conectá tu cuenta de %s para continuar.", k.Title())
		fmt.Printf("  Autorizá el acceso en: %s\n", settings)
		fmt.Printf("  %s\n", display.Dim.Render("Luego ejecutá 'transformar sources' para confirmar la conexión."))
		return nil
	},
}

// settingsURL is where the backend authorizes the integration of k.
func settingsURL(k types.SourceKind) string {
	return strings.TrimRight(cfg.APIBase, "/") + "/integration/" + string(k)
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(connectCmd)
}
