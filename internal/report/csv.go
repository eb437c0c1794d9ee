package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
)

// WriteCSV writes the spreadsheet export: one block per contributor, then the sprint
// summary and a TOTAL row.
func WriteCSV(w io.Writer, d domain.SprintData) error {
	h := d.Headers
	if h == (domain.TableHeaders{}) {
		h = domain.DefaultHeaders()
	}
	var b strings.Builder
	b.WriteString("Sprint Report\n\n")

	users := orderedUsers(d)
	for _, user := range users {
		b.WriteString(field(user) + "\n")
		tt := h.TicketTable
		writeRow(&b, tt.Ticket, tt.Summary, tt.StoryPoints, tt.HoursLogged, tt.Difference, tt.Comments)
		for _, t := range d.UserData[user] {
			fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s\n",
				quote(t.DisplayLabel), quote(t.Summary), formatNumber(t.StoryPoints),
				t.HoursLoggedFormatted, t.DifferenceFormatted, quote(t.Comments))
		}
		sum := d.UserSummaries[user]
		fmt.Fprintf(&b, "%s,,%s,%s,,\n\n", field("Total for "+user), formatNumber(sum.OwnStoryPoints), totalHoursFmt(sum))
	}

	st := h.SummaryTable
	b.WriteString("\nSprint Summary\n")
	writeRow(&b, st.User, st.StoryPointsOwn, st.HoursLoggedAll, st.PlannedHours, st.Utilization)
	for _, user := range users {
		sum := d.UserSummaries[user]
		planned := d.PlannedHours(sum.OwnStoryPoints)
		fmt.Fprintf(&b, "%s,%s,%s,%.1fh,%.1f%%\n", field(user), formatNumber(sum.OwnStoryPoints), totalHoursFmt(sum),
			planned, domain.Utilization(sum.TotalHours, sum.OwnStoryPoints, d.HoursPerStoryPoint))
	}
	allFmt := d.Totals.AllHoursFormatted
	if allFmt == "" {
		allFmt = domain.FormatHours(d.Totals.AllHours)
	}
	fmt.Fprintf(&b, "TOTAL,%s,%s,%.1fh,%.1f%%\n", formatNumber(d.Totals.AllStoryPoints), allFmt,
		d.PlannedHours(d.Totals.AllStoryPoints),
		domain.Utilization(d.Totals.AllHours, d.Totals.AllStoryPoints, d.HoursPerStoryPoint))

	_, err := io.WriteString(w, b.String())
	return err
}

// FileName is the download name of an export made at the given time.
func FileName(at time.Time) string {
	return "Sprint_Report_" + at.UTC().Format("2006-01-02") + ".csv"
}

// field quotes s only when it would otherwise split or break the row.
func field(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}

func writeRow(b *strings.Builder, cells ...string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(field(c))
	}
	b.WriteByte('\n')
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func totalHoursFmt(s domain.UserSummary) string {
	if s.TotalHoursFormatted != "" {
		return s.TotalHoursFormatted
	}
	return domain.FormatHours(s.TotalHours)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
