package main

import (
	"fmt"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/pterm/pterm"
)

func printReport(d domain.SprintData) {
	pterm.Println()
	pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgCyan, pterm.Bold)).
		Printfln("%s (%s - %s)", d.SprintName, dateOnly(d.SprintStart), dateOnly(d.SprintEnd))

	if len(d.Users) == 0 {
		pterm.Warning.Println("No worklogs or assigned issues in this sprint.")
		return
	}

	tt := d.Headers.TicketTable
	for _, u := range d.Users {
		pterm.Println(pterm.Bold.Sprint(u))
		rows := pterm.TableData{{tt.Ticket, tt.Summary, tt.StoryPoints, tt.HoursLogged, tt.Difference, tt.Comments}}
		for _, t := range d.UserData[u] {
			label := t.DisplayLabel
			if t.ContributedButNotOwner {
				label = pterm.Gray(label)
			}
			rows = append(rows, []string{label, t.Summary, fmtNum(t.StoryPoints), t.HoursLoggedFormatted,
				t.DifferenceFormatted, truncate(t.Comments, 60)})
		}
		sum := d.UserSummaries[u]
		rows = append(rows, []string{pterm.Bold.Sprint("Total"), "", fmtNum(sum.OwnStoryPoints),
			pterm.FgYellow.Sprint(sum.TotalHoursFormatted), "", ""})
		_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(rows).Render()
		pterm.Println()
	}

	st := d.Headers.SummaryTable
	rows := pterm.TableData{{st.User, st.StoryPointsOwn, st.HoursLoggedAll, st.PlannedHours, st.Utilization}}
	for _, u := range d.Users {
		sum := d.UserSummaries[u]
		util := domain.Utilization(sum.TotalHours, sum.OwnStoryPoints, d.HoursPerStoryPoint)
		rows = append(rows, []string{u, fmtNum(sum.OwnStoryPoints), sum.TotalHoursFormatted,
			fmt.Sprintf("%.1f", d.PlannedHours(sum.OwnStoryPoints)), utilCell(util)})
	}
	rows = append(rows, []string{pterm.Bold.Sprint("TOTAL"), fmtNum(d.Totals.AllStoryPoints), d.Totals.AllHoursFormatted,
		fmt.Sprintf("%.1f", d.PlannedHours(d.Totals.AllStoryPoints)),
		utilCell(domain.Utilization(d.Totals.AllHours, d.Totals.AllStoryPoints, d.HoursPerStoryPoint))})
	_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(rows).Render()
	pterm.Println()
}

func utilCell(pct float64) string {
	s := fmt.Sprintf("%.1f%%", pct)
	switch {
	case pct > 110:
		return pterm.FgRed.Sprint(s)
	case pct >= 90:
		return pterm.FgGreen.Sprint(s)
	default:
		return pterm.FgYellow.Sprint(s)
	}
}

func dateOnly(s string) string {
	if t, ok := domain.ParseTime(s); ok {
		return t.Format("2006-01-02")
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
