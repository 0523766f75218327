package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/gridpulse/internal/client"
	"github.com/user/gridpulse/internal/model"
)

var statusMasterURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show master and outstation status",
	Long:  "Fetch one snapshot from the master's query API and print it.",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusMasterURL, "master-url", "",
		"master base URL (overrides config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	connectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Italic(true)

	url := cfg.MasterURL
	if statusMasterURL != "" {
		url = statusMasterURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := client.New(url).Status(ctx)
	if err != nil {
		fmt.Println(errorStyle.Render("Master unreachable: " + err.Error()))
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("GridPulse Master %d", status.MasterID)))
	fmt.Printf("%s %s\n\n",
		labelStyle.Render("Snapshot:"),
		valueStyle.Render(status.Timestamp.Format("2006-01-02 15:04:05")))

	ids := make([]int, 0, len(status.Outstations))
	for id := range status.Outstations {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		o := status.Outstations[id]

		fmt.Println(titleStyle.Render(fmt.Sprintf("%s (#%d)", o.Name, o.ID)))

		fmt.Print(labelStyle.Render("  Status: "))
		switch o.ConnectionStatus {
		case model.StatusConnected:
			fmt.Println(connectedStyle.Render(string(o.ConnectionStatus)))
		case model.StatusError:
			fmt.Println(errorStyle.Render(fmt.Sprintf("%s (%d consecutive failures)",
				o.ConnectionStatus, o.FailureCount)))
		default:
			fmt.Println(dimStyle.Render(string(o.ConnectionStatus)))
		}

		if o.LastUpdate != nil {
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Last poll:"),
				valueStyle.Render(o.LastUpdate.Format("15:04:05")))
		}

		if m := o.Latest; m != nil {
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Readings: "),
				valueStyle.Render(fmt.Sprintf("%.2f V  %.2f A  %.3f Hz  %.2f °C",
					m.Voltage, m.Current, m.Frequency, m.Temperature)))
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Power:    "),
				valueStyle.Render(fmt.Sprintf("%.2f kW  %.2f kVAR  %.2f kVA  load %.1f%%",
					m.RealPowerKW, m.ReactivePowerKVAR, m.ApparentPowerKVA, m.LoadPercentage)))
			if o.ConnectionStatus != model.StatusConnected {
				fmt.Println(dimStyle.Render("  (readings are stale)"))
			}
		} else {
			fmt.Println(dimStyle.Render("  no data yet"))
		}
		fmt.Println()
	}

	return nil
}
