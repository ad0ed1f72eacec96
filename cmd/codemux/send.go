package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codemux/cli/internal/transport"
	"github.com/codemux/cli/internal/ui"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <session-id> <text>...",
	Short: "Send a line of input to a remote session",
	Long: `Connect to a session, type the given text followed by Enter, and
disconnect. Multiple arguments are joined with spaces.

Useful for scripting a session without attaching a viewer:

  codemux send deploy-shell "make release"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "Give up if the session is not reachable in time")
	sendCmd.Flags().StringVar(&attachHost, "host", "", "Server host (default from config, then localhost)")
	sendCmd.Flags().IntVar(&attachPort, "port", 0, "Server port (default from config, then 8765)")
	sendCmd.Flags().BoolVar(&attachTLS, "tls", false, "Connect over wss://")
	sendCmd.Flags().StringVar(&attachURL, "url", "", "Full session URL, overrides host/port/tls")
}

func runSend(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	text := strings.Join(args[1:], " ")

	sess, _, err := buildSession(cmd, sessionID)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	states := make(chan transport.State, 8)
	sess.OnStateChange(func(st transport.State) {
		select {
		case states <- st:
		default:
		}
	})
	sess.Connect(ctx)

	deadline := time.NewTimer(sendTimeout)
	defer deadline.Stop()
	for {
		select {
		case st := <-states:
			switch st.Phase {
			case transport.PhaseOpen:
				if err := sess.SendText(text); err != nil {
					return fmt.Errorf("send input: %w", err)
				}
				ui.PrintSuccess("Sent to %s: %s", sessionID, text)
				return nil
			case transport.PhaseExhausted, transport.PhaseClosed:
				return fmt.Errorf("could not reach session %s", sessionID)
			}
		case <-deadline.C:
			return fmt.Errorf("timed out connecting to session %s", sessionID)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
