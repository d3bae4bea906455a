package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/api"
	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/types"
	"github.com/transformar/console/internal/wizard"
)

var (
	processSource     string
	processText       string
	processFile       string
	processMessage    string
	processAttachment int
	processUseText    bool
	processTemplate   string
)

var processCmd = &cobra.Command{
	Use:     "process",
	Aliases: []string{"procesar"},
	Short:   "Process one input with a template, without prompts",
	Long: `Run the three wizard steps from flags and submit one processing request.

The result replaces the stored results shown by 'transformar results'.

Examples:
  transformar process --source text --text "Invoice #123" --template tpl_abc
  transformar process --source document --file factura.pdf --template tpl_abc
  transformar process --source gmail --message 18c2f --attachment 0 --template tpl_abc
  cat nota.txt | transformar process --source text --text - --template tpl_abc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := types.ParseSourceKind(processSource)
		if err != nil {
			return err
		}
		client, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		ctl := newController(client)
		if err := ctl.PickSource(ctx, k); err != nil {
			return userError(err)
		}
		if ctl.Snapshot().NeedsConnection {
			return fmt.Errorf("%s is not connected (run 'transformar connect %s')", k, k)
		}

		switch k.Family() {
		case types.FamilyUpload:
			if processFile != "" {
				up, err := readUpload(processFile)
				if err != nil {
					return err
				}
				if err := ctl.SelectFile(up); err != nil {
					return userError(err)
				}
			}
		case types.FamilyText:
			text := processText
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			if err := ctl.SetText(text); err != nil {
				return userError(err)
			}
		default:
			if processMessage != "" {
				if err := ctl.SelectMessage(ctx, processMessage); err != nil {
					return userError(err)
				}
				switch {
				case processUseText:
					err = ctl.UseText()
				case processAttachment >= 0:
					err = ctl.UseAttachment(ctx, processAttachment)
				}
				if err != nil {
					return userError(err)
				}
			}
		}

		ctl.SelectTemplate(processTemplate)
		run, err := submitRun(ctx, ctl)
		if err != nil {
			return userError(err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), run)
		}
		if !quietFlag {
			display.SuccessMsg("Procesado %s con la plantilla %s", display.SourceBadge(run.SourceType), run.SelectedTemplate)
			renderRun(run)
		}
		return nil
	},
}

func newController(client *api.Client) *wizard.Controller {
	return wizard.New(client, wizard.WithLogger(logger), wizard.WithListLimit(cfg.ListLimit))
}

// submitRun submits the wizard and persists the outcome. Backend failures are
// recorded in the history; guard failures are not.
func submitRun(ctx context.Context, ctl *wizard.Controller) (*types.Run, error) {
	st := ctl.Snapshot()
	run, err := ctl.Submit(ctx)
	if err != nil {
		if !errors.Is(err, wizard.ErrInputRequired) && !errors.Is(err, wizard.ErrNoTemplate) && !errors.Is(err, wizard.ErrBusy) {
			if recErr := sess.RecordFailure(st.Source, st.TemplateID, err); recErr != nil {
				logger.Warn("record failed run", "error", recErr)
			}
		}
		return nil, err
	}
	if err := sess.SaveRun(run); err != nil {
		return nil, err
	}
	return run, nil
}

// userError turns err into the message shown to the user, keeping it wrapped.
func userError(err error) error {
	return &alertError{msg: wizard.UserMessage(err), err: err}
}

type alertError struct {
	msg string
	err error
}

func (e *alertError) Error() string { return e.msg }
func (e *alertError) Unwrap() error { return e.err }

func readUpload(path string) (api.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return api.Upload{Name: filepath.Base(path), Data: data}, nil
}

func init() {
	processCmd.Flags().StringVar(&processSource, "source", "", "Source: document, text, gmail, outlook, whatsapp, telegram")
	processCmd.Flags().StringVar(&processText, "text", "", "Free text to process ('-' reads stdin)")
	processCmd.Flags().StringVar(&processFile, "file", "", "Document to upload")
	processCmd.Flags().StringVar(&processMessage, "message", "", "Message id for messaging sources")
	processCmd.Flags().IntVar(&processAttachment, "attachment", -1, "Attachment index to use instead of the default channel")
	processCmd.Flags().BoolVar(&processUseText, "use-text", false, "Use the message body instead of an attachment")
	processCmd.Flags().StringVar(&processTemplate, "template", "", "Template id")
	processCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(processCmd)
}
