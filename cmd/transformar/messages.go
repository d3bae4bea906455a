package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/types"
)

var messagesLimit int

type messagesOutput struct {
	Source    types.SourceKind       `json:"source"`
	Connected bool                   `json:"connected"`
	Messages  []types.MessageSummary `json:"messages"`
}

var messagesCmd = &cobra.Command{
	Use:     "messages SOURCE [MESSAGE_ID]",
	Aliases: []string{"mensajes"},
	Short:   "List recent messages of a connected source, or show one",
	Long: `List the latest messages of gmail, outlook, whatsapp or telegram, or show
the body preview and attachments of one message.

Examples:
  transformar messages gmail
  transformar messages telegram --limit 20
  transformar messages outlook AAMkAD...`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := types.ParseSourceKind(args[0])
		if err != nil {
			return err
		}
		if !k.IsMessaging() {
			return fmt.Errorf("source %q has no messages", k)
		}

		client, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		connected, err := client.IntegrationStatus(ctx, k)
		if err != nil {
			return fmt.Errorf("check %s integration: %w", k, err)
		}
		if !connected {
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), messagesOutput{Source: k, Messages: []types.MessageSummary{}})
			}
			display.Notice("%s no está conectado. Ejecutá 'transformar connect %s'.", k.Title(), k)
			return nil
		}

		limit := messagesLimit
		if limit <= 0 {
			limit = cfg.ListLimit
		}

		if len(args) == 2 {
			id := args[1]
			var detail *types.MessageDetail
			if k.Family() == types.FamilyChat {
				// Chat listings usually carry the content inline.
				msgs, err := client.ListMessages(ctx, k, limit)
				if err != nil {
					return fmt.Errorf("list %s messages: %w", k, err)
				}
				for _, m := range msgs {
					if m.ID == id {
						detail = m.InlineDetail()
						break
					}
				}
			}
			if detail == nil {
				detail, err = client.GetMessage(ctx, k, id)
				if err != nil {
					return fmt.Errorf("get %s message %s: %w", k, id, err)
				}
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), detail)
			}
			printDetail(k, id, detail)
			return nil
		}

		msgs, err := client.ListMessages(ctx, k, limit)
		if err != nil {
			return fmt.Errorf("list %s messages: %w", k, err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), messagesOutput{Source: k, Connected: true, Messages: msgs})
		}
		printListing(k, msgs)
		return nil
	},
}

func printListing(k types.SourceKind, msgs []types.MessageSummary) {
	if len(msgs) == 0 {
		fmt.Printf("No hay mensajes en %s.\n", k.Title())
		return
	}
	fmt.Printf("%s (%d):\n\n", display.SourceBadge(k), len(msgs))
	for i, m := range msgs {
		fmt.Println(display.MessageLine(i+1, m))
	}
}

func printDetail(k types.SourceKind, id string, d *types.MessageDetail) {
	textLabel, attLabel := display.ChannelLabels(k)
	display.Header(fmt.Sprintf("%s · %s", k.Title(), id))
	fmt.Println()
	display.SubHeader(textLabel)
	for _, line := range strings.Split(display.Preview(d.Text, display.PreviewLimit), "\n") {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println()
	display.SubHeader(attLabel)
	if len(d.Attachments) == 0 {
		fmt.Printf("  %s\n", display.Dim.Render("(sin adjuntos)"))
		return
	}
	for i, a := range d.Attachments {
		fmt.Printf("  %s\n", display.AttachmentLine(k, i, a))
	}
}

func init() {
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 0, "Number of messages to list (default from config)")
	rootCmd.AddCommand(messagesCmd)
}
