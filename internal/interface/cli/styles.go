package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	successMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	failMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	answerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	matchedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("krishimitra> ")
)

// step runs fn and prints a ✓ or ✗ line with the returned detail and the
// elapsed time.
func step(w io.Writer, msg string, fn func() (string, error)) error {
	start := time.Now()
	detail, err := fn()
	elapsed := time.Since(start)

	mark := successMark
	if err != nil {
		mark = failMark
		detail = err.Error()
	}
	line := fmt.Sprintf("  %s %s", mark, msg)
	if detail != "" {
		line += ": " + detail
	}
	fmt.Fprintf(w, "%s %s\n", line, dimStyle.Render(fmt.Sprintf("(%s)", formatDuration(elapsed))))
	return err
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatPercent(confidence float64) string {
	return fmt.Sprintf("%.0f%%", confidence*100)
}
