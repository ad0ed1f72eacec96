package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codemux/cli/internal/config"
	"github.com/codemux/cli/internal/session"
	"github.com/codemux/cli/internal/tui"
	"github.com/codemux/cli/internal/ui"
)

var (
	attachHost        string
	attachPort        int
	attachTLS         bool
	attachURL         string
	attachMaxAttempts int
	attachBaseDelay   time.Duration
	attachMaxDelay    time.Duration
)

var attachCmd = &cobra.Command{
	Use:   "attach <session-id>",
	Short: "Attach a live viewer to a remote terminal session",
	Long: `Open a full-screen mirror of a remote terminal session.

Keystrokes and scroll events are forwarded to the remote pty. If the
connection drops, the viewer reconnects with exponential backoff and
resynchronizes automatically.

Viewer keys: ctrl+q detach, ctrl+y copy screen, r retry after the
connection is lost.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().StringVar(&attachHost, "host", "", "Server host (default from config, then localhost)")
	attachCmd.Flags().IntVar(&attachPort, "port", 0, "Server port (default from config, then 8765)")
	attachCmd.Flags().BoolVar(&attachTLS, "tls", false, "Connect over wss://")
	attachCmd.Flags().StringVar(&attachURL, "url", "", "Full session URL, overrides host/port/tls")
	attachCmd.Flags().IntVar(&attachMaxAttempts, "max-attempts", 0, "Reconnect attempts before giving up")
	attachCmd.Flags().DurationVar(&attachBaseDelay, "base-delay", 0, "Initial reconnect delay")
	attachCmd.Flags().DurationVar(&attachMaxDelay, "max-delay", 0, "Reconnect delay ceiling")
}

func runAttach(cmd *cobra.Command, args []string) error {
	if !tui.IsInteractive() {
		return fmt.Errorf("attach needs an interactive terminal; use 'codemux send' for scripted input")
	}
	sessionID := args[0]

	sess, cfg, err := buildSession(cmd, sessionID)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tui.Run(ctx, sess, tui.Options{
		SessionID:   sessionID,
		MaxAttempts: cfg.TransportConfig().MaxAttempts,
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("viewer failed: %w", err)
	}
	ui.PrintDim("Detached from %s", sessionID)
	return nil
}

// buildSession resolves config, flags, and the session URL into a
// ready-to-connect session. Flags override config file values.
func buildSession(cmd *cobra.Command, sessionID string) (*session.Session, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if attachHost != "" {
		cfg.Server.Host = attachHost
	}
	if attachPort != 0 {
		cfg.Server.Port = attachPort
	}
	if attachTLS {
		cfg.Server.TLS = true
	}
	if attachMaxAttempts > 0 {
		cfg.Reconnect.MaxAttempts = attachMaxAttempts
	}
	if attachBaseDelay > 0 {
		cfg.Reconnect.BaseDelayMs = int(attachBaseDelay / time.Millisecond)
	}
	if attachMaxDelay > 0 {
		cfg.Reconnect.MaxDelayMs = int(attachMaxDelay / time.Millisecond)
	}

	url := cfg.SessionURL(sessionID)
	if attachURL != "" {
		url, err = config.NormalizeWSURL(attachURL)
		if err != nil {
			return nil, nil, err
		}
	}

	theme, err := cfg.BuildTheme()
	if err != nil {
		return nil, nil, err
	}

	sess := session.New(session.Options{
		URL:       url,
		Theme:     theme,
		Transport: cfg.TransportConfig(),
	})
	return sess, cfg, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
