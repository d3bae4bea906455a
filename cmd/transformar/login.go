package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/display"
	"golang.org/x/term"
)

var (
	loginEmail         string
	loginPasswordStdin bool
)

const recoverSentMsg = "Si el correo existe, recibirás instrucciones para recuperar tu contraseña"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the processing backend",
	Long: `Sign in with email and password and store the session token locally.

The password is read without echo when stdin is a terminal, or as one line
from stdin with --password-stdin.

Examples:
  transformar login --email ana@empresa.com
  echo "$PASS" | transformar login --email ana@empresa.com --password-stdin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		email := strings.TrimSpace(loginEmail)
		if email == "" {
			var err error
			if email, err = prompt(in, out, "Email: "); err != nil {
				return fmt.Errorf("read email: %w", err)
			}
		}
		if email == "" {
			return fmt.Errorf("email is required")
		}

		password, err := readPassword(in, loginPasswordStdin)
		if err != nil {
			return err
		}

		client, err := newClient(false)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		token, err := client.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := sess.SetToken(token, email); err != nil {
			return err
		}
		logger.Info("logged in", "email", email, "api", client.BaseURL())

		if jsonOutput {
			return printJSON(out, map[string]string{"email": email, "status": "logged_in"})
		}
		if !quietFlag {
			display.SuccessMsg("Sesión iniciada como %s", email)
		}
		return nil
	},
}

// readPassword reads the password without echo from a terminal, or one line
// from stdin otherwise.
func readPassword(in *bufio.Reader, fromStdin bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !fromStdin && term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Contraseña: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sess.ClearToken(); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Sesión cerrada")
		}
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover EMAIL",
	Short: "Request password recovery instructions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(false)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := client.RecoverPassword(ctx, strings.TrimSpace(args[0])); err != nil {
			return fmt.Errorf("recover password: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"status": "sent", "message": recoverSentMsg})
		}
		display.SuccessMsg(recoverSentMsg)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted when omitted)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(recoverCmd)
}
