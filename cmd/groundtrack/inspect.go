package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/star/groundtrack/internal/config"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/tle"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(22)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file|-|url]",
	Short: "Decode a TLE and print its elements and mean orbit.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := tle.ParseGravity(v.GetString(config.KeyGravity))
		if err != nil {
			return err
		}
		es, err := loadElementSet(cmd.Context(), args[0], g)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderElementSet(es))
		return nil
	},
}

func init() {
	inspectCmd.Flags().String(config.KeyGravity, "wgs72", "gravity model: wgs72old, wgs72, wgs84")
}

func renderElementSet(es *tle.ElementSet) string {
	orbit := propagation.MeanOrbit(es)

	var b strings.Builder
	b.WriteString(titleStyle.Render(es.String()))
	b.WriteString("\n\n")
	row(&b, "Epoch (UTC)", es.Epoch.Format(time.RFC3339Nano))
	row(&b, "International designator", es.IntlDesignator)
	row(&b, "Classification", string(es.Classification))
	row(&b, "Element set / rev", fmt.Sprintf("%d / %d", es.ElementSetNo, es.RevNumber))
	row(&b, "Inclination", fmt.Sprintf("%.4f°", es.Inclination))
	row(&b, "RAAN", fmt.Sprintf("%.4f°", es.RAAN))
	row(&b, "Eccentricity", fmt.Sprintf("%.7f", es.Eccentricity))
	row(&b, "Argument of perigee", fmt.Sprintf("%.4f°", es.ArgPerigee))
	row(&b, "Mean anomaly", fmt.Sprintf("%.4f°", es.MeanAnomaly))
	row(&b, "Mean motion", fmt.Sprintf("%.8f rev/day", es.MeanMotion))
	row(&b, "B*", fmt.Sprintf("%.5e", es.BStar))
	row(&b, "Gravity model", string(es.Gravity))
	b.WriteString("\n")
	row(&b, "Period", orbit.Period.Round(time.Second).String())
	row(&b, "Semi-major axis", fmt.Sprintf("%.3f km", orbit.SemiMajorAxisKm))
	row(&b, "Perigee height", fmt.Sprintf("%.3f km", orbit.PerigeeKm))
	row(&b, "Apogee height", fmt.Sprintf("%.3f km", orbit.ApogeeKm))
	if orbit.DeepSpace {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("deep-space orbit (period >= 225 min): not supported by run or serve"))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func row(w io.StringWriter, label, value string) {
	w.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
}
