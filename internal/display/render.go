package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ritual/pkg/domain"
)

var (
	colorDone    = lipgloss.Color("#2CD7C7")
	colorPending = lipgloss.Color("#F4D03F")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorTitle   = lipgloss.Color("#20B9B4")
)

// Renderer writes days and their habits to a terminal. Colours are dropped
// when out is not a terminal.
type Renderer struct {
	out     io.Writer
	title   lipgloss.Style
	muted   lipgloss.Style
	done    lipgloss.Style
	pending lipgloss.Style
}

// NewRenderer returns a renderer whose colour profile is detected from out.
func NewRenderer(out io.Writer) *Renderer {
	re := lipgloss.NewRenderer(out)
	return &Renderer{
		out:     out,
		title:   re.NewStyle().Bold(true).Foreground(colorTitle),
		muted:   re.NewStyle().Foreground(colorMuted),
		done:    re.NewStyle().SetString("✓").Foreground(colorDone),
		pending: re.NewStyle().SetString("○").Foreground(colorPending),
	}
}

// Recent returns the last n days of state by date, oldest first. An
// unconstructed n returns every day.
func Recent(state domain.State, n domain.NonZeroUint32) []domain.Day {
	days := state.DaysByDate()
	if n.IsZero() {
		return days
	}
	if limit := int(n.Inner()); limit < len(days) {
		days = days[len(days)-limit:]
	}
	return days
}

// Days writes each day under its nice date, followed by its habits in
// insertion order.
func (r *Renderer) Days(days []domain.Day, now time.Time) error {
	if len(days) == 0 {
		_, err := fmt.Fprintln(r.out, r.muted.Render("no days yet"))
		return err
	}
	var b strings.Builder
	for i, day := range days {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.title.Render(NiceDate(day.Date, now)))
		b.WriteString(" ")
		b.WriteString(r.muted.Render(fmt.Sprintf("%s  %s  %s", Summary(day), day.Date.UTC().Format(time.DateOnly), day.ID)))
		b.WriteByte('\n')
		if day.Habits.Len() == 0 {
			b.WriteString("  ")
			b.WriteString(r.muted.Render("no habits"))
			b.WriteByte('\n')
			continue
		}
		width := 0
		for _, ref := range day.Habits.Values() {
			width = max(width, lipgloss.Width(ref.Name))
		}
		for _, ref := range day.Habits.Values() {
			mark := r.pending.String()
			if ref.Done {
				mark = r.done.String()
			}
			pad := strings.Repeat(" ", width-lipgloss.Width(ref.Name))
			fmt.Fprintf(&b, "  %s %s%s  %s\n", mark, ref.Name, pad, r.muted.Render(ref.ID.String()))
		}
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

// Summary returns "done/total" for a day.
func Summary(day domain.Day) string {
	done := 0
	for _, ref := range day.Habits.Values() {
		if ref.Done {
			done++
		}
	}
	return fmt.Sprintf("%d/%d", done, day.Habits.Len())
}
