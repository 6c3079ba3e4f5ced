// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// markdown rendering, news and stats views) for chatrelay CLI commands.
package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/chatrelay/pkg/news"
	"github.com/papercomputeco/chatrelay/pkg/stats"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	StepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	DimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	KeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	NameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	LinkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Underline(true)

	UserPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("bot> ")

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the raw content is returned alongside the error.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// WriteNews prints a numbered list of news items.
func WriteNews(w io.Writer, items []news.Item) {
	if len(items) == 0 {
		fmt.Fprintf(w, "  %s\n", DimStyle.Render("No news available."))
		return
	}

	for i, item := range items {
		fmt.Fprintf(w, "  %s %s\n", DimStyle.Render(fmt.Sprintf("%2d.", i+1)), TitleStyle.Render(item.Title))
		if content := strings.TrimSpace(item.Content); content != "" {
			fmt.Fprintf(w, "      %s\n", content)
		}
		if item.URL != "" {
			fmt.Fprintf(w, "      %s\n", LinkStyle.Render(item.URL))
		}
	}
}

// WriteStats prints the totals followed by the per-day breakdown.
func WriteStats(w io.Writer, snap stats.Snapshot) {
	row := func(key string, val any) {
		fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render(fmt.Sprintf("%-16s", key)), NameStyle.Render(fmt.Sprint(val)))
	}

	row("Since", snap.StartDate)
	row("Total visits", snap.TotalVisits)
	row("Total API calls", snap.TotalAPICalls)
	row("Today visits", snap.TodayVisits)
	row("Today API calls", snap.TodayAPICalls)

	if len(snap.Daily) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", DimStyle.Render(fmt.Sprintf("%-12s %8s %10s", "date", "visits", "api calls")))
	for _, d := range snap.Daily {
		fmt.Fprintf(w, "  %-12s %8d %10d\n", d.Date, d.Visits, d.APICalls)
	}
}
