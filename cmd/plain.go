package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/output"
	"github.com/joescharf/fbchat/internal/session"
	"github.com/joescharf/fbchat/internal/transcript"
	"github.com/joescharf/fbchat/internal/tui"
)

// plainController is what the line-oriented front end needs from the
// session machine.
type plainController interface {
	tui.Controller
	State() session.State
	Subscribe() (<-chan session.State, func())
	Flush(ctx context.Context) error
}

// runPlain reads one answer per line, waiting before each read until the
// session can accept input. Conversation output goes to u.Out from a single
// printer goroutine; rejections go to u.ErrOut.
func runPlain(ctx context.Context, ctrl plainController, tlog *transcript.Log, in io.Reader, u *output.UI) error {
	printed, stopPrinting := ctrl.Subscribe()
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		printStates(printed, tlog, u)
	}()

	err := plainLoop(ctx, ctrl, in, u)

	// Let the printer see the last published snapshot before unsubscribing.
	_ = ctrl.Flush(ctx)
	final := ctrl.State()
	stopPrinting()
	<-printerDone

	fmt.Fprintln(u.Out)
	if terr := u.Transcript(final.Transcript); terr != nil {
		return terr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, session.ErrStopped) {
		return nil
	}
	return err
}

func plainLoop(ctx context.Context, ctrl plainController, in io.Reader, u *output.UI) error {
	states, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()
	lines := readLines(ctx, in)

	for {
		if err := waitReady(ctx, ctrl, states); err != nil {
			return err
		}

		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		dispatchLine(ctrl, ctrl.State(), line)
		if err := ctrl.Flush(ctx); err != nil {
			return err
		}
		if rej := ctrl.State().LastRejection; rej != nil {
			u.Error("%v", rej)
		}
	}
}

func dispatchLine(ctrl tui.Controller, s session.State, line string) {
	switch {
	case line == "/new":
		ctrl.StartNewSession()
	case strings.HasPrefix(line, "/issue"):
		ctrl.ReportIssue(strings.TrimSpace(strings.TrimPrefix(line, "/issue")))
	default:
		rating, err := strconv.Atoi(line)
		isNumber := err == nil
		switch {
		case isNumber && s.CanRate():
			ctrl.SubmitRating(rating)
		case isNumber && s.CanRateExperience():
			ctrl.SubmitExperienceRating(rating)
		case s.CanSendFeedback() || !isNumber:
			ctrl.SubmitFeedback(line)
		default:
			ctrl.SubmitRating(rating)
		}
	}
}

// readyForInput reports whether the user has something to answer, or is
// stuck and may only start over or quit.
func readyForInput(s session.State) bool {
	switch {
	case s.CanRate(), s.CanSendFeedback(), s.CanRateExperience():
		return true
	case s.Phase.Terminal(), s.Stranded():
		return true
	}
	return false
}

func waitReady(ctx context.Context, ctrl plainController, states <-chan session.State) error {
	for {
		if readyForInput(ctrl.State()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-states:
			if !ok {
				return session.ErrStopped
			}
		}
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// printStates echoes new transcript entries, connection changes and input
// hints until states is closed.
func printStates(states <-chan session.State, tlog *transcript.Log, u *output.UI) {
	var (
		lastSeq  uint64
		lastConn models.ConnectionState
		lastHint string
	)
	for s := range states {
		if s.Connection != lastConn {
			u.Status(s.Connection)
			lastConn = s.Connection
		}
		for _, msg := range tlog.Since(lastSeq) {
			u.Message(msg)
			lastSeq = msg.Seq
		}
		if hint := inputHint(s); hint != lastHint {
			if hint != "" {
				u.Info("%s", hint)
			}
			lastHint = hint
		}
	}
}

func inputHint(s session.State) string {
	switch {
	case s.Phase.Terminal():
		return "Session over. Type /new to start again or /quit to leave."
	case s.Stranded():
		return "Connection closed. Type /new to reconnect or /quit to leave."
	case s.CanSendFeedback() && s.Mode == models.FeedbackInline && s.Phase == models.PhaseAwaitingRating:
		return "Answer with 1-5 or type your feedback."
	case s.CanSendFeedback():
		return "Tell us more about your rating."
	case s.CanRate():
		return "Rate this question from 1 to 5."
	case s.CanRateExperience():
		return "Rate your overall experience from 1 to 5."
	}
	return ""
}
