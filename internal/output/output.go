package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/joescharf/fbchat/internal/models"
)

// UI provides colored line output for the plain (non-TUI) chat mode and
// the config commands.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	faint         = color.New(color.Faint).SprintFunc()
)

// ConnectionColor returns the connection label colored by state.
func ConnectionColor(s models.ConnectionState) string {
	switch s {
	case models.ConnectionConnected:
		return green(s.Label())
	case models.ConnectionConnecting, models.ConnectionReconnecting:
		return yellow(s.Label())
	case models.ConnectionDisconnected:
		return red(s.Label())
	default:
		return s.Label()
	}
}

// OriginLabel returns the speaker name shown in front of a message.
func OriginLabel(o models.Origin) string {
	switch o {
	case models.OriginBot:
		return cyan("bot")
	case models.OriginUser:
		return green("you")
	case models.OriginSystem:
		return yellow("system")
	default:
		return string(o)
	}
}

// RatingFace returns the face shown next to a rating choice.
func RatingFace(rating int) string {
	if rating <= 3 {
		return "😞"
	}
	return "😊"
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Message prints one transcript entry.
func (u *UI) Message(msg models.Message) {
	fmt.Fprintf(u.Out, "%s %s: %s\n", faint(msg.At.Format("15:04:05")), OriginLabel(msg.Origin), msg.Text)
}

// Status prints a connection state change.
func (u *UI) Status(s models.ConnectionState) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, ConnectionColor(s))
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// Transcript renders the conversation as a table.
func (u *UI) Transcript(msgs []models.Message) error {
	table := u.Table([]string{"#", "Time", "From", "Message"})
	for _, msg := range msgs {
		if err := table.Append([]string{
			fmt.Sprintf("%d", msg.Seq),
			msg.At.Format("15:04:05"),
			string(msg.Origin),
			msg.Text,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
