package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/fbchat/internal/conn"
	"github.com/joescharf/fbchat/internal/logging"
	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/output"
	"github.com/joescharf/fbchat/internal/peertest"
	"github.com/joescharf/fbchat/internal/protocol"
	"github.com/joescharf/fbchat/internal/session"
)

func testSettings(url string) settings {
	opts := conn.DefaultOptions(url)
	opts.RetryDelay = 10 * time.Millisecond
	opts.DialTimeout = time.Second
	return settings{
		Conn:     opts,
		Token:    "s3cret",
		Session:  session.DefaultConfig(),
		LogLevel: "debug",
	}
}

func plainUI() (*bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	ui = &output.UI{Out: out, ErrOut: errOut}
	return out, errOut
}

func TestRunChat_PlainSurvey(t *testing.T) {
	peer := peertest.New("s3cret")
	defer peer.Close()
	peer.Script = &peertest.Script{
		Questions: []protocol.Question{
			{MongoID: "65a1", Text: "How easy was checkout?"},
			{MongoID: "65a2", Text: "Would you shop here again?"},
		},
		ThankYou: "Thanks for rating us!",
		Closing:  "Your feedback has been recorded.",
	}
	out, errOut := plainUI()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := strings.NewReader("1\nThe checkout flow was confusing\n5\n4\n")
	err := runChat(ctx, testSettings(peer.URL()), logging.Discard(), in, true)
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "survey did not finish before the timeout")

	text := out.String()
	for _, want := range []string{
		"How easy was checkout?",
		"The checkout flow was confusing",
		"Would you shop here again?",
		"Thanks for rating us!",
		"Your feedback has been recorded.",
	} {
		// Once live, once in the final transcript table.
		assert.GreaterOrEqual(t, strings.Count(text, want), 2, want)
	}
	assert.Contains(t, text, "Session over")
	assert.Empty(t, errOut.String())
	assert.Equal(t, 1, peer.Connections())
}

func TestRunChat_PlainRejectionIsReported(t *testing.T) {
	peer := peertest.New("s3cret")
	defer peer.Close()
	peer.Script = &peertest.Script{
		Questions: []protocol.Question{{MongoID: "65a1", Text: "How easy was checkout?"}},
	}
	_, errOut := plainUI()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := strings.NewReader("9\n/quit\n")
	require.NoError(t, runChat(ctx, testSettings(peer.URL()), logging.Discard(), in, true))
	assert.Contains(t, errOut.String(), session.ErrInvalidRating.Error())
}

func TestRunChat_PlainUnreachable(t *testing.T) {
	peer := peertest.New("")
	url := peer.URL()
	peer.Close()

	out, _ := plainUI()
	st := testSettings(url)
	st.Conn.MaxAttempts = 2

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, runChat(ctx, st, logging.Discard(), strings.NewReader("/quit\n"), true))
	assert.Contains(t, out.String(), "Unable to reach the survey server after 2 attempts.")
}

func TestRunChat_PlainRecoversAfterHangup(t *testing.T) {
	peer := peertest.New("s3cret")
	defer peer.Close()
	out, _ := plainUI()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		in := strings.NewReader("5\n/new\n/quit\n")
		done <- runChat(ctx, testSettings(peer.URL()), logging.Discard(), in, true)
	}()

	first, err := peer.WaitConn(1, 5*time.Second)
	require.NoError(t, err)
	_, err = first.Expect(protocol.EventStartSession, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, first.Send(protocol.EventFirstQuestion, protocol.Question{MongoID: "65a1", Text: "How easy was checkout?"}))
	_, err = first.Expect(protocol.EventSubmitResponse, 5*time.Second)
	require.NoError(t, err)

	// A normal close leaves the session waiting on a question that never
	// comes; /new must still be read.
	first.Hangup()

	second, err := peer.WaitConn(2, 5*time.Second)
	require.NoError(t, err)
	_, err = second.Expect(protocol.EventStartSession, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, second.Send(protocol.EventFirstQuestion, protocol.Question{MongoID: "65a1", Text: "How easy was checkout?"}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("plain mode did not read /quit after reconnecting")
	}
	assert.Contains(t, out.String(), "Connection closed. Type /new to reconnect")
	assert.Equal(t, 2, peer.Connections())
}

func TestRunChat_CancelledContext(t *testing.T) {
	peer := peertest.New("s3cret")
	defer peer.Close()
	plainUI()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nothing to read and no session: the cancelled context ends the loop.
	err := runChat(ctx, testSettings(peer.URL()), logging.Discard(), strings.NewReader(""), true)
	assert.NoError(t, err)
}

type recordingController struct {
	calls []string
	args  []any
}

func (r *recordingController) record(name string, arg any) {
	r.calls = append(r.calls, name)
	r.args = append(r.args, arg)
}

func (r *recordingController) StartNewSession()             { r.record("new", nil) }
func (r *recordingController) SubmitRating(v int)           { r.record("rate", v) }
func (r *recordingController) SubmitFeedback(s string)      { r.record("feedback", s) }
func (r *recordingController) SubmitExperienceRating(v int) { r.record("experience", v) }
func (r *recordingController) OpenIssueReport()             { r.record("open-issue", nil) }
func (r *recordingController) CancelIssueReport()           { r.record("cancel-issue", nil) }
func (r *recordingController) ReportIssue(s string)         { r.record("issue", s) }

func rating() session.State {
	return session.State{
		Connection: models.ConnectionConnected,
		Phase:      models.PhaseAwaitingRating,
		Mode:       models.FeedbackConditional,
		Session:    models.Session{CurrentQuestion: &models.Question{ID: "q1", Text: "How was it?"}},
	}
}

func TestDispatchLine(t *testing.T) {
	feedback := rating()
	feedback.Phase = models.PhaseAwaitingOptionalFeedback
	feedback.Session.FeedbackPrompt = true

	experience := rating()
	experience.Phase = models.PhaseAwaitingExperienceRating
	experience.Session.CurrentQuestion = nil
	experience.Session.ExperiencePrompt = true

	inline := rating()
	inline.Mode = models.FeedbackInline

	ended := rating()
	ended.Phase = models.PhaseEnded

	tests := []struct {
		name  string
		state session.State
		line  string
		call  string
		arg   any
	}{
		{"rating", rating(), "4", "rate", 4},
		{"rating out of range goes to machine", rating(), "9", "rate", 9},
		{"text while rating", rating(), "meh", "feedback", "meh"},
		{"feedback", feedback, "too slow", "feedback", "too slow"},
		{"digits as feedback", feedback, "42", "feedback", "42"},
		{"experience", experience, "5", "experience", 5},
		{"inline rating", inline, "2", "rate", 2},
		{"inline feedback", inline, "confusing labels", "feedback", "confusing labels"},
		{"new session", ended, "/new", "new", nil},
		{"issue", rating(), "/issue labels are cut off", "issue", "labels are cut off"},
		{"number after end", ended, "3", "rate", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &recordingController{}
			dispatchLine(ctrl, tt.state, tt.line)
			require.Len(t, ctrl.calls, 1)
			assert.Equal(t, tt.call, ctrl.calls[0])
			assert.Equal(t, tt.arg, ctrl.args[0])
		})
	}
}

func TestReadyForInput(t *testing.T) {
	loading := rating()
	loading.Phase = models.PhaseAwaitingNextQuestion
	loading.Session.Loading = true

	starting := rating()
	starting.Phase = models.PhaseStarting

	idle := session.State{Connection: models.ConnectionDisconnected, Phase: models.PhaseIdle}
	gaveUp := idle
	gaveUp.Transcript = []models.Message{{Seq: 1, Origin: models.OriginSystem, Text: "Unable to reach"}}

	interrupted := rating()
	interrupted.Phase = models.PhaseInterrupted
	interrupted.Connection = models.ConnectionReconnecting

	hungUp := loading
	hungUp.Connection = models.ConnectionDisconnected

	reconnecting := loading
	reconnecting.Connection = models.ConnectionReconnecting

	assert.True(t, readyForInput(rating()))
	assert.True(t, readyForInput(gaveUp))
	assert.True(t, readyForInput(interrupted))
	assert.True(t, readyForInput(hungUp))
	assert.False(t, readyForInput(reconnecting))
	assert.False(t, readyForInput(loading))
	assert.False(t, readyForInput(starting))
	assert.False(t, readyForInput(idle))
}

func TestInputHint(t *testing.T) {
	inline := rating()
	inline.Mode = models.FeedbackInline
	ended := rating()
	ended.Phase = models.PhaseEnded

	assert.Equal(t, "Rate this question from 1 to 5.", inputHint(rating()))
	assert.Equal(t, "Answer with 1-5 or type your feedback.", inputHint(inline))
	assert.Contains(t, inputHint(ended), "/new")

	hungUp := rating()
	hungUp.Connection = models.ConnectionDisconnected
	assert.Equal(t, "Connection closed. Type /new to reconnect or /quit to leave.", inputHint(hungUp))
	assert.Empty(t, inputHint(session.State{Phase: models.PhaseIdle}))
}

func TestVersionCmd(t *testing.T) {
	buf := &bytes.Buffer{}
	versionCmd.SetOut(buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "fbchat dev (commit none, built unknown)\n", buf.String())
}
