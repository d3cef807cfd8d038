package dashboard

import (
	"fmt"
	"sort"
	"strings"
)

// Placeholder is shown for values that cannot be computed.
const Placeholder = "—"

// ChartPoints is the number of history entries shown in a site chart.
const ChartPoints = 10

// Summary holds the aggregate dashboard figures.
type Summary struct {
	Total       int
	Down        int
	Slowest     string
	AvgResponse string
}

// ChartPoint is one point of a site's response-time chart.
type ChartPoint struct {
	Label string
	Ms    int64
}

// DownRow is one line of the "Sites Down" table.
type DownRow struct {
	Name         string
	URL          string
	LastChecked  string
	ResponseTime string
	Error        string
}

// AverageResponse returns the mean response time of a site in
// milliseconds, zero for an empty history.
func AverageResponse(s *Site) float64 {
	if len(s.ResponseHistory) == 0 {
		return 0
	}
	var total int64
	for _, r := range s.ResponseHistory {
		total += r.Ms
	}
	return float64(total) / float64(len(s.ResponseHistory))
}

// Summarize computes the aggregate figures for a site list.
//
// The slowest site is the first one with the highest non-zero average.
// The average response is the mean of per-site averages in seconds.
func Summarize(sites []Site) Summary {
	sum := Summary{
		Total:       len(sites),
		Slowest:     Placeholder,
		AvgResponse: Placeholder,
	}
	if len(sites) == 0 {
		return sum
	}

	var slowestAvg, total float64
	for i := range sites {
		if sites[i].Status == StatusDown {
			sum.Down++
		}

		avg := AverageResponse(&sites[i])
		total += avg
		if avg > slowestAvg {
			slowestAvg = avg
			sum.Slowest = sites[i].Name
		}
	}

	sum.AvgResponse = fmt.Sprintf("%.2f s", total/float64(len(sites))/1000)
	return sum
}

// StatusPriority orders statuses for display, most urgent first.
func StatusPriority(status string) int {
	switch status {
	case StatusDown:
		return 0
	case StatusHighLatency, StatusDegraded:
		return 1
	case StatusUnknown:
		return 2
	case StatusUp:
		return 3
	default:
		return 4
	}
}

// SortSites returns a copy of sites in display order: by status priority,
// then by descending average response time. The sort is stable.
func SortSites(sites []Site) []Site {
	sorted := make([]Site, len(sites))
	copy(sorted, sites)

	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := StatusPriority(sorted[i].Status), StatusPriority(sorted[j].Status)
		if pi != pj {
			return pi < pj
		}
		return AverageResponse(&sorted[i]) > AverageResponse(&sorted[j])
	})
	return sorted
}

// CardError returns the error line of a site card, or "" when the card
// shows none.
func CardError(s *Site) string {
	last := s.Last()

	switch s.Status {
	case StatusUp:
		return ""
	case StatusDown:
		if last == nil {
			return "N/A"
		}
		if strings.Contains(strings.ToLower(last.Error), "http") {
			return last.Error
		}
		if last.Code != 0 {
			return fmt.Sprintf("HTTP %d", last.Code)
		}
		if last.Error != "" {
			return last.Error
		}
		return "Unknown Error"
	case StatusHighLatency:
		return "Slow response"
	default:
		return "N/A"
	}
}

// LastResponse formats the newest response time, "N/A" when there is none.
func LastResponse(s *Site) string {
	if last := s.Last(); last != nil && last.Ms != 0 {
		return fmt.Sprintf("%d ms", last.Ms)
	}
	return "N/A"
}

// Chart returns the points of a site's response-time chart: the newest
// ChartPoints entries labelled with their time of day.
func Chart(s *Site) []ChartPoint {
	recent := s.Recent(ChartPoints)
	points := make([]ChartPoint, 0, len(recent))
	for _, r := range recent {
		label := Placeholder
		if _, clock, ok := strings.Cut(r.Time, " "); ok && clock != "" {
			label = clock
		}
		points = append(points, ChartPoint{Label: label, Ms: r.Ms})
	}
	return points
}

// DownSites returns the "Sites Down" table rows in list order.
func DownSites(sites []Site) []DownRow {
	var rows []DownRow
	for i := range sites {
		s := &sites[i]
		if s.Status != StatusDown {
			continue
		}

		row := DownRow{
			Name:         s.Name,
			URL:          s.URL,
			LastChecked:  Placeholder,
			ResponseTime: Placeholder,
			Error:        "N/A",
		}
		if s.LastChecked != nil {
			row.LastChecked = *s.LastChecked
		}
		if last := s.Last(); last != nil {
			if last.Ms != 0 {
				row.ResponseTime = fmt.Sprintf("%d ms", last.Ms)
			}
			switch {
			case last.Code != 0:
				row.Error = fmt.Sprintf("(%s)", last.Error)
			case last.Error != "":
				row.Error = last.Error
			}
		}
		rows = append(rows, row)
	}
	return rows
}
