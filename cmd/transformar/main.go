package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/transformar/console/internal/api"
	"github.com/transformar/console/internal/config"
	"github.com/transformar/console/internal/db"
	"github.com/transformar/console/internal/session"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	dbPath      string
	configPath  string
	apiBase     string
	jsonOutput  bool
	quietFlag   bool
	verboseFlag bool

	cfg        config.Config
	logger     *slog.Logger
	logCleanup = func() error { return nil }
	store      *db.DB
	sess       *session.Session
)

var rootCmd = &cobra.Command{
	Use:           "transformar",
	Short:         "transformar - Extract structured data from documents, text and messages",
	Long:          "Transformar: pick a source, pick a template, and turn documents, free text or connected messages into tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if apiBase != "" {
			cfg.APIBase = strings.TrimRight(apiBase, "/")
		}
		logger, logCleanup = cfg.Logger(verboseFlag)

		// Skip DB for commands that don't need it
		switch cmd.Name() {
		case "init", "help", "version", "quickstart", "recover":
			return nil
		}

		path := dbPath
		if path == "" {
			path = db.DiscoverDB()
		}
		if path == "" {
			path = cfg.DBPath
		}
		if path == "" {
			path = db.DefaultPath()
		}

		store, err = db.Open(path)
		if err != nil {
			return fmt.Errorf("open session database: %w", err)
		}
		sess = session.New(store)
		logger.Debug("session opened", "path", path)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
		logCleanup()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("transformar version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a project-local .transformar/ session",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := db.FindProjectRoot()
		if root == "" {
			return fmt.Errorf("could not find project root (no .git directory found)")
		}

		path := filepath.Join(root, db.DirName, db.FileName)
		s, err := db.Open(path)
		if err != nil {
			return err
		}
		s.Close()

		ensureGitignore(root)

		if !quietFlag {
			fmt.Printf("Initialized transformar session at %s\n", path)
		}
		return nil
	},
}

// ensureGitignore adds .transformar/ to .gitignore if not already present.
func ensureGitignore(root string) {
	gitignorePath := filepath.Join(root, ".gitignore")
	entry := db.DirName + "/"

	data, err := os.ReadFile(gitignorePath)
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == entry || line == db.DirName {
				return
			}
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return // silently skip if can't write
	}
	defer f.Close()

	if len(data) > 0 && data[len(data)-1] != '\n' {
		f.WriteString("\n")
	}
	fmt.Fprintf(f, "\n# Transformar session (token and last results)\n%s\n", entry)
}

// newClient builds a backend client. Commands that act for the user require
// a stored session token.
func newClient(requireSession bool) (*api.Client, error) {
	token := ""
	if sess != nil {
		t, err := sess.Token()
		if err != nil && requireSession {
			return nil, err
		}
		token = t
	} else if requireSession {
		return nil, session.ErrNoSession
	}
	return api.New(api.Options{
		BaseURL: cfg.APIBase,
		Token:   token,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	}), nil
}

// commandContext returns a context cancelled on interrupt.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// prompt prints label and reads one trimmed line from r.
func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Session database path (default: auto-discover .transformar/session.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/transformar/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log backend calls to stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
