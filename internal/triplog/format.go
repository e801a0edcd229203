package triplog

import (
	"fmt"
	"strings"
	"time"

	"minibus-tracker/internal/route"
)

// MapUnitKM converts map units to kilometers (1 unit = 17.5 m).
const MapUnitKM = 17.5 / 1000

const timeLayout = "15:04:05"

// FormatReport renders finalized logs into the daily report string, in input
// order. Idle events and path samples are mapped to street names through the
// route. now supplies the report date and the running duration of any log
// that has no end time yet. An empty log list yields a fixed "no trips"
// message.
func FormatReport(logs []Log, r *route.Route, now time.Time) string {
	if len(logs) == 0 {
		return "No trips logged for today."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- MINIBUS DAILY REPORT: %s ---\n\n", now.Format("2006-01-02"))

	for i, l := range logs {
		end := l.EndTime
		inProgress := end.IsZero()
		if inProgress {
			end = now
		}

		totalIdle := time.Duration(0)
		for _, ev := range l.IdleEvents {
			totalIdle += ev.EndTime.Sub(ev.StartTime)
		}
		comfort := 100.0
		totalReports := len(l.PassengerReports)
		if totalReports > 0 {
			comfort = float64(l.PositiveReports) / float64(totalReports) * 100
		}
		avgSpeedKmh := l.AverageSpeed * MapUnitKM * 3600

		fmt.Fprintf(&b, "====== TRIP %d (ID: %s) ======\n", i+1, l.ID)
		endLabel := "In Progress"
		if !inProgress {
			endLabel = end.Format(timeLayout)
		}
		fmt.Fprintf(&b, "Time: %s - %s\n", l.StartTime.Format(timeLayout), endLabel)
		fmt.Fprintf(&b, "Duration: %s\n", formatDuration(end.Sub(l.StartTime)))
		fmt.Fprintf(&b, "Distance: %.2f km\n", l.TotalDistance*MapUnitKM)

		b.WriteString("\n--- PERFORMANCE ---\n")
		fmt.Fprintf(&b, "- Speed (Avg): %.1f km/h\n", avgSpeedKmh)
		fmt.Fprintf(&b, "- Comfort Score: %.0f%% (%d/%d positive reports)\n", comfort, l.PositiveReports, totalReports)
		fmt.Fprintf(&b, "- Capacity Util.: %.1f%% (Avg %.1f / Max %d passengers)\n",
			l.CapacityUtilization, l.AveragePassengers, l.MaxPassengers)

		if len(l.IdleEvents) > 0 {
			fmt.Fprintf(&b, "\n--- IDLE TIME (Total: %s) ---\n", formatDuration(totalIdle))
			for _, ev := range l.IdleEvents {
				fmt.Fprintf(&b, "- [%s] %s near %s for %s\n",
					ev.StartTime.Format(timeLayout), ev.Reason,
					r.NearestStreet(ev.Position), formatDuration(ev.EndTime.Sub(ev.StartTime)))
			}
		}

		b.WriteString("\n--- ROUTE ---\n")
		b.WriteString(strings.Join(streetSummary(l.Path, r), " -> "))
		b.WriteString("\n")

		if totalReports > 0 {
			b.WriteString("\n--- PASSENGER FEEDBACK ---\n")
			for _, report := range l.PassengerReports {
				fmt.Fprintf(&b, "- [%s] %s", report.Timestamp.Format(timeLayout),
					strings.ReplaceAll(string(report.Category), "_", " "))
				if report.Comment != "" {
					fmt.Fprintf(&b, ": %q", report.Comment)
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// streetSummary maps each path sample to its nearest street and collapses
// consecutive repeats.
func streetSummary(path []PathPoint, r *route.Route) []string {
	var streets []string
	for _, p := range path {
		street := r.NearestStreet(p.Position)
		if len(streets) == 0 || streets[len(streets)-1] != street {
			streets = append(streets, street)
		}
	}
	return streets
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
