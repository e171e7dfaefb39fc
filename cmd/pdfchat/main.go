// Command pdfchat is a terminal client for a PDF question-answering service.
//
// Run without arguments to start the interactive chat interface.
package main

import (
	"fmt"
	"os"
	"strings"

	"pdfchat/cmd/pdfchat/chat"
	"pdfchat/internal/backend"
	"pdfchat/internal/config"
	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"
	"pdfchat/internal/store"

	"github.com/spf13/cobra"
)

// skipConfig marks commands that must run even when the config file is broken.
const skipConfig = "skip-config"

// app carries global flags and the resolved configuration.
type app struct {
	// Global flags
	configPath string
	apiURL     string
	verbose    bool
	noSources  bool
	noProgress bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pdfchat",
		Short: "Chat with your PDFs from the terminal",
		Long: `pdfchat talks to a PDF question-answering service.

Ask questions in Chat Mode, upload PDFs to switch to PDF Mode, and see the
sources each answer was drawn from.

Run without arguments to start the interactive chat interface.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.loadConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.CloseAll()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInteractive()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: .pdfchat/config.yaml)")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "Backend base URL (or set PDFCHAT_API_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging to the log file")
	root.PersistentFlags().BoolVar(&a.noSources, "no-sources", false, "Do not track answer sources")
	root.PersistentFlags().BoolVar(&a.noProgress, "no-progress", false, "Do not track upload progress")

	root.AddCommand(
		a.newAskCmd(),
		a.newUploadCmd(),
		a.newWatchCmd(),
		a.newSessionsCmd(),
		a.newDoctorCmd(),
		a.newConfigCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolvedConfigPath returns --config or the default location.
func (a *app) resolvedConfigPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.DefaultPath()
}

// loadConfig layers file, environment and flags, then starts logging.
func (a *app) loadConfig() error {
	cfg, err := config.Load(a.resolvedConfigPath())
	if err != nil {
		return err
	}

	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	if a.noSources {
		cfg.Features.TrackSources = false
	}
	if a.noProgress {
		cfg.Features.TrackUploadProgress = false
	}
	if a.verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	logging.Boot("config loaded: path=%s base_url=%s features=%+v", a.resolvedConfigPath(), cfg.API.BaseURL, cfg.Features)
	logging.BootDebug("timeouts: chat=%v upload=%v; history=%t driver=%s",
		cfg.GetChatTimeout(), cfg.GetUploadTimeout(), cfg.History.Enabled, cfg.History.Driver)
	a.cfg = cfg
	return nil
}

func (a *app) newClient() *backend.Client {
	return backend.NewClient(backend.Config{
		BaseURL:       a.cfg.API.BaseURL,
		ChatTimeout:   a.cfg.GetChatTimeout(),
		UploadTimeout: a.cfg.GetUploadTimeout(),
	})
}

func (a *app) features() conversation.Features {
	return conversation.Features{
		TrackSources:        a.cfg.Features.TrackSources,
		TrackUploadProgress: a.cfg.Features.TrackUploadProgress,
	}
}

// openHistory opens the transcript store when history is enabled.
// Returns nil without error when it is disabled.
func (a *app) openHistory() (*store.Transcript, error) {
	if !a.cfg.History.Enabled {
		return nil, nil
	}
	tr, err := store.Open(a.cfg.History.Driver, a.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return tr, nil
}

func (a *app) runInteractive() error {
	tr, err := a.openHistory()
	if err != nil {
		return err
	}

	opts := chat.Options{
		Backend:           a.newClient(),
		BaseURL:           a.cfg.API.BaseURL,
		Features:          a.features(),
		MaxUploadFiles:    a.cfg.Upload.MaxFiles,
		AllowedExtensions: a.cfg.Upload.AllowedExtensions,
		AllowFile:         a.cfg.IsAllowedFile,
		Theme:             a.cfg.UI.Theme,
		WordWrap:          a.cfg.UI.WordWrap,
	}
	if tr != nil {
		defer tr.Close()
		opts.Transcript = tr
	}
	return chat.RunInteractive(a.cfg.UI.Title, opts)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
