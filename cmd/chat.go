package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/fbchat/internal/conn"
	"github.com/joescharf/fbchat/internal/logging"
	"github.com/joescharf/fbchat/internal/session"
	"github.com/joescharf/fbchat/internal/transcript"
	"github.com/joescharf/fbchat/internal/tui"
)

var chatPlain bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a feedback session",
	Long: `Connect to the survey server and start a feedback session.

By default the session runs in a full-screen terminal UI. With --plain,
answers are read line by line from stdin and the conversation is printed
as it happens, followed by a transcript table when input ends.

Plain mode input:
  1-5              rate the current question (or the overall experience)
  any other text   feedback, when the server asks for it
  /issue <text>    report a problem with the current question
  /new             start a new session
  /quit            leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return chatRun(cmd)
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "Line-oriented mode without the terminal UI")
	chatCmd.Flags().String("url", "", "Survey server websocket URL (overrides server.url)")
	chatCmd.Flags().String("token", "", "Bearer token (overrides auth.token)")
	_ = viper.BindPFlag("server.url", chatCmd.Flags().Lookup("url"))
	_ = viper.BindPFlag("auth.token", chatCmd.Flags().Lookup("token"))
	rootCmd.AddCommand(chatCmd)
}

func chatRun(cmd *cobra.Command) error {
	st, err := loadSettings()
	if err != nil {
		return err
	}

	var (
		logger *log.Logger
		closer io.Closer = io.NopCloser(nil)
	)
	if chatPlain && verbose {
		// Nothing else owns the terminal in plain mode.
		logger = logging.New(os.Stderr, "debug")
	} else {
		logger, closer, err = logging.Open(st.LogFile, st.LogLevel)
		if err != nil {
			ui.Warning("Logging disabled: %v", err)
			logger, closer = logging.Discard(), io.NopCloser(nil)
		}
	}
	defer closer.Close()

	if dryRun {
		ui.DryRunMsg("Would connect to %s (feedback mode %s)", st.Conn.URL, st.Session.FeedbackMode)
		return nil
	}
	ui.VerboseLog("Connecting to %s", st.Conn.URL)
	ui.VerboseLog("Logging to %s", st.LogFile)

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
	defer stop()

	return runChat(ctx, st, logger, os.Stdin, chatPlain)
}

// runChat wires the connection manager to the session machine and runs the
// chosen front end until it returns. Shutdown stops the machine first, then
// the connection.
func runChat(ctx context.Context, st settings, logger *log.Logger, in io.Reader, plain bool) error {
	mgr := conn.New(st.Conn, st.Token, logger)
	tlog := transcript.New()
	machine := session.New(mgr, tlog, st.Session, logger)
	mgr.Subscribe(machine)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = machine.Run(runCtx)
	}()
	defer func() {
		cancel()
		wg.Wait()
		if err := mgr.Close(); err != nil {
			logger.Warn("close connection", "err", err)
		}
	}()

	logger.Info("starting chat", "url", st.Conn.URL, "mode", st.Session.FeedbackMode, "plain", plain)
	mgr.Connect()

	if plain {
		return runPlain(runCtx, machine, tlog, in, ui)
	}

	states, unsubscribe := machine.Subscribe()
	defer unsubscribe()
	if err := tui.Run(runCtx, machine, states, st.AltScreen); err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}
