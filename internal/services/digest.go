package services

import (
	"fmt"
	"strings"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
)

// renderDigest builds the plain-text chat summary of a report.
func renderDigest(d domain.SprintData, stats RunStats, narrative string) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Sprint report: %s\n", d.SprintName)
	if d.SprintStart != "" || d.SprintEnd != "" {
		fmt.Fprintf(b, "%s - %s\n", dateOnly(d.SprintStart), dateOnly(d.SprintEnd))
	}
	fmt.Fprintf(b, "Story points: %s | Hours: %s | Planned: %.1fh | Utilization: %.1f%%\n\n",
		trimFloat(d.Totals.AllStoryPoints), domain.FormatHours(d.Totals.AllHours),
		d.PlannedHours(d.Totals.AllStoryPoints),
		domain.Utilization(d.Totals.AllHours, d.Totals.AllStoryPoints, d.HoursPerStoryPoint))
	for _, u := range d.Users {
		sum := d.UserSummaries[u]
		fmt.Fprintf(b, "- %s: %s logged, %s SP own, %.1fh planned (%.1f%%)\n",
			u, domain.FormatHours(sum.TotalHours), trimFloat(sum.OwnStoryPoints),
			d.PlannedHours(sum.OwnStoryPoints),
			domain.Utilization(sum.TotalHours, sum.OwnStoryPoints, d.HoursPerStoryPoint))
	}
	if stats.Degraded > 0 {
		fmt.Fprintf(b, "\nNote: %d lookups failed, figures may be incomplete.\n", stats.Degraded)
	}
	if strings.TrimSpace(narrative) != "" {
		fmt.Fprintf(b, "\n%s\n", strings.TrimSpace(narrative))
	}
	return b.String()
}

func reportKPIs(d domain.SprintData) map[string]float64 {
	kpis := map[string]float64{
		"total_story_points": d.Totals.AllStoryPoints,
		"total_hours":        d.Totals.AllHours,
		"planned_hours":      d.PlannedHours(d.Totals.AllStoryPoints),
		"util_pct":           domain.Utilization(d.Totals.AllHours, d.Totals.AllStoryPoints, d.HoursPerStoryPoint),
	}
	for _, u := range d.Users {
		sum := d.UserSummaries[u]
		kpis["hours."+u] = sum.TotalHours
		kpis["planned_hours."+u] = d.PlannedHours(sum.OwnStoryPoints)
		kpis["util_pct."+u] = domain.Utilization(sum.TotalHours, sum.OwnStoryPoints, d.HoursPerStoryPoint)
	}
	return kpis
}

func dateOnly(s string) string {
	if t, ok := domain.ParseTime(s); ok {
		return t.Format("2006-01-02")
	}
	return s
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

// chunkText splits text into chunks of up to max runes, attempting to break on line boundaries.
func chunkText(s string, max int) []string {
	if max <= 0 {
		return []string{s}
	}
	var chunks []string
	cur := ""
	curlen := 0
	for _, ln := range strings.Split(s, "\n") {
		rl := len([]rune(ln))
		if rl > max {
			if curlen > 0 {
				chunks = append(chunks, cur)
				cur, curlen = "", 0
			}
			r := []rune(ln)
			for i := 0; i < rl; i += max {
				j := i + max
				if j > rl {
					j = rl
				}
				chunks = append(chunks, string(r[i:j]))
			}
			continue
		}
		extra := rl
		if curlen > 0 {
			extra++
		}
		if curlen+extra > max {
			chunks = append(chunks, cur)
			cur, curlen = ln, rl
		} else if curlen == 0 {
			cur, curlen = ln, rl
		} else {
			cur += "\n" + ln
			curlen += extra
		}
	}
	if curlen > 0 {
		chunks = append(chunks, cur)
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}
