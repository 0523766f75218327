package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/gridpulse/internal/model"
)

// Dashboard renders one system snapshot.
type Dashboard struct {
	status model.SystemStatus
	width  int
	height int
}

// NewDashboard creates a dashboard for a snapshot.
func NewDashboard(status model.SystemStatus, width, height int) *Dashboard {
	return &Dashboard{status: status, width: width, height: height}
}

// SetSize updates the dashboard size.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var sb strings.Builder

	header := HeaderStyle.Width(d.width).Render("⚡ GridPulse SCADA Master")
	sb.WriteString(header)
	sb.WriteString("\n\n")

	ids := make([]int, 0, len(d.status.Outstations))
	for id := range d.status.Outstations {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		sb.WriteString(d.renderOutstation(d.status.Outstations[id]))
		sb.WriteString("\n")
	}

	sb.WriteString(HelpStyle.Render(fmt.Sprintf(
		"master %d • snapshot %s • 'r' refresh • 'q' quit",
		d.status.MasterID,
		d.status.Timestamp.Format("15:04:05"))))

	return sb.String()
}

func (d *Dashboard) renderOutstation(o model.OutstationStatus) string {
	sectionWidth := d.width - 4
	if sectionWidth < 48 {
		sectionWidth = 48
	}

	title := SectionTitleStyle.Render(fmt.Sprintf("%s  (#%d, addr %d)", o.Name, o.ID, o.Address))

	var lines []string
	lines = append(lines, fmt.Sprintf("%s %s",
		LabelStyle.Render("Status:"), RenderStatus(o.ConnectionStatus)))

	if o.LastUpdate != nil {
		lines = append(lines, fmt.Sprintf("%s %s",
			LabelStyle.Render("Last poll:"),
			ValueStyle.Render(o.LastUpdate.Format("15:04:05"))))
	}
	if o.FailureCount > 0 {
		lines = append(lines, fmt.Sprintf("%s %s",
			LabelStyle.Render("Failures:"),
			ErrorStyle.Render(fmt.Sprintf("%d", o.FailureCount))))
	}

	if m := o.Latest; m != nil {
		lines = append(lines,
			fmt.Sprintf("%s %s   %s %s",
				LabelStyle.Render("Voltage:"),
				ValueStyle.Render(fmt.Sprintf("%7.2f V", m.Voltage)),
				LabelStyle.Render("Current:"),
				ValueStyle.Render(fmt.Sprintf("%7.2f A", m.Current))),
			fmt.Sprintf("%s %s   %s %s",
				LabelStyle.Render("Frequency:"),
				ValueStyle.Render(fmt.Sprintf("%7.3f Hz", m.Frequency)),
				LabelStyle.Render("Temp:"),
				ValueStyle.Render(fmt.Sprintf("%7.2f °C", m.Temperature))),
			fmt.Sprintf("%s %s   %s %s",
				LabelStyle.Render("Real power:"),
				ValueStyle.Render(fmt.Sprintf("%7.2f kW", m.RealPowerKW)),
				LabelStyle.Render("Apparent:"),
				ValueStyle.Render(fmt.Sprintf("%7.2f kVA", m.ApparentPowerKVA))),
			fmt.Sprintf("%s %s %s",
				LabelStyle.Render("Load:"),
				RenderBar(m.LoadPercentage, 24),
				ValueStyle.Render(fmt.Sprintf("%5.1f%%", m.LoadPercentage))))

		stale := o.ConnectionStatus != model.StatusConnected
		if stale {
			lines = append(lines, DimStyle.Render("readings are stale"))
		}
	} else {
		lines = append(lines, DimStyle.Render("no data yet"))
	}

	return SectionStyle.Width(sectionWidth).Render(title + "\n" + strings.Join(lines, "\n"))
}
