// ConsoleWriter prints human-friendly, colorized record summaries.
package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"ats-sim/internal/telemetry"
)

var (
	idStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// ConsoleWriter prints one summary line per record.
type ConsoleWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleWriter creates a ConsoleWriter writing to out.
func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out}
}

// Write prints a record summary.
func (w *ConsoleWriter) Write(r telemetry.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.out, Summary(r))
	return err
}

// Summary renders a single-line description of r.
func Summary(r telemetry.Record) string {
	parts := []string{
		labelStyle.Render("Train ") + idStyle.Render(r.EntityID),
		labelStyle.Render("Passengers: ") + fmt.Sprint(r.PassengerCount),
		labelStyle.Render("Power: ") + fmt.Sprintf("%.2fkW", r.PowerDrawKW),
		labelStyle.Render("Speed: ") + fmt.Sprintf("%.2fkm/h", r.SpeedKmh),
		labelStyle.Render("Alerts: ") + renderAlerts(r.Alerts),
	}
	return strings.Join(parts, labelStyle.Render(" | "))
}

func renderAlerts(a telemetry.Alerts) string {
	var active []string
	if a.Overcrowding {
		active = append(active, "overcrowding")
	}
	if a.HighPowerDraw {
		active = append(active, "high_power_draw")
	}
	if len(active) == 0 {
		return okStyle.Render("none")
	}
	return alertStyle.Render(strings.Join(active, ","))
}
