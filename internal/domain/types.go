/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"strings"
	"time"
)

const Unassigned = "Unassigned"

// Sprint states as reported by the agile API (compared case-insensitively).
const (
	StateActive = "active"
	StateFuture = "future"
	StateClosed = "closed"
)

type Sprint struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// StateRank orders sprints for presentation: active, future, closed, then anything else.
func (s Sprint) StateRank() int {
	switch strings.ToLower(strings.TrimSpace(s.State)) {
	case StateActive:
		return 0
	case StateFuture:
		return 1
	case StateClosed:
		return 2
	default:
		return 99
	}
}

func (s Sprint) HasState(state string) bool {
	return strings.EqualFold(strings.TrimSpace(s.State), state)
}

func (s Sprint) HasDateWindow() bool {
	return strings.TrimSpace(s.StartDate) != "" && strings.TrimSpace(s.EndDate) != ""
}

// Label renders "Name (State | Jan 2 - Jan 16)", dropping the parts that are unknown.
func (s Sprint) Label() string {
	var parts []string
	if st := strings.TrimSpace(s.State); st != "" {
		parts = append(parts, strings.ToUpper(st[:1])+strings.ToLower(st[1:]))
	}
	var dates []string
	for _, d := range []string{s.StartDate, s.EndDate} {
		if t, ok := ParseTime(d); ok {
			dates = append(dates, t.Format("Jan 2"))
		}
	}
	if len(dates) > 0 {
		parts = append(parts, strings.Join(dates, " - "))
	}
	if len(parts) == 0 {
		return s.Name
	}
	return s.Name + " (" + strings.Join(parts, " | ") + ")"
}

// Issue is the parsed view of one sprint issue; it does not outlive an aggregation run.
type Issue struct {
	Key         string
	Summary     string
	StoryPoints float64
	Assignee    string
	IsSubtask   bool
}

type WorklogEntry struct {
	Author      string
	LoggedHours float64
	LoggedAt    time.Time
}

type Ticket struct {
	TicketKey              string  `json:"ticket"`
	DisplayLabel           string  `json:"ticketDisplay"`
	Summary                string  `json:"summary"`
	StoryPoints            float64 `json:"storyPoints"`
	HoursLogged            float64 `json:"hoursLogged"`
	HoursLoggedFormatted   string  `json:"hoursLoggedFmt"`
	Difference             float64 `json:"difference"`
	DifferenceFormatted    string  `json:"differenceFmt"`
	ContributedButNotOwner bool    `json:"contributedButNotOwner"`
	Comments               string  `json:"comments"`
}

// Recompute refreshes the derived hour fields from StoryPoints and HoursLogged.
func (t *Ticket) Recompute(hoursPerStoryPoint float64) {
	t.HoursLoggedFormatted = FormatHours(t.HoursLogged)
	t.Difference = t.StoryPoints*hoursPerStoryPoint - t.HoursLogged
	t.DifferenceFormatted = FormatDifference(t.Difference)
}

type UserSummary struct {
	UserID              string  `json:"userId"`
	OwnStoryPoints      float64 `json:"ownStoryPoints"`
	TotalHours          float64 `json:"totalHours"`
	TotalHoursFormatted string  `json:"totalHoursFmt"`
}

type Totals struct {
	AllStoryPoints    float64 `json:"allStoryPoints"`
	AllHours          float64 `json:"allHours"`
	AllHoursFormatted string  `json:"allHoursFmt"`
}

type TicketTableHeaders struct {
	Ticket      string `json:"ticket"`
	Summary     string `json:"summary"`
	StoryPoints string `json:"storyPoints"`
	HoursLogged string `json:"hoursLogged"`
	Difference  string `json:"difference"`
	Comments    string `json:"comments"`
}

type SummaryTableHeaders struct {
	User           string `json:"user"`
	StoryPointsOwn string `json:"storyPointsOwn"`
	HoursLoggedAll string `json:"hoursLoggedAll"`
	PlannedHours   string `json:"plannedHours"`
	Utilization    string `json:"utilization"`
}

type TableHeaders struct {
	TicketTable  TicketTableHeaders  `json:"ticketTable"`
	SummaryTable SummaryTableHeaders `json:"summaryTable"`
}

func DefaultHeaders() TableHeaders {
	return TableHeaders{
		TicketTable: TicketTableHeaders{
			Ticket:      "Ticket",
			Summary:     "Summary",
			StoryPoints: "Story Points",
			HoursLogged: "Hours Logged",
			Difference:  "Difference",
			Comments:    "Comments",
		},
		SummaryTable: SummaryTableHeaders{
			User:           "User",
			StoryPointsOwn: "Story Points (Own)",
			HoursLoggedAll: "Hours Logged (All)",
			PlannedHours:   "Planned Hours",
			Utilization:    "Utilization %",
		},
	}
}

// SprintData is the aggregated report. Users keeps contributor order (first appearance
// during the issue scan); UserData and UserSummaries are keyed by the same names.
type SprintData struct {
	SprintID           int64                  `json:"sprintId,omitempty"`
	SprintName         string                 `json:"sprintName"`
	SprintStart        string                 `json:"sprintStart"`
	SprintEnd          string                 `json:"sprintEnd"`
	SprintState        string                 `json:"sprintState,omitempty"`
	HoursPerStoryPoint float64                `json:"hoursPerStoryPoint"`
	Users              []string               `json:"users"`
	UserData           map[string][]Ticket    `json:"userData"`
	UserSummaries      map[string]UserSummary `json:"userSummaries"`
	Headers            TableHeaders           `json:"headers"`
	Totals             Totals                 `json:"totals"`
}

// Clone returns a deep copy; edits never touch the receiver.
func (d SprintData) Clone() SprintData {
	out := d
	out.Users = append([]string(nil), d.Users...)
	out.UserData = make(map[string][]Ticket, len(d.UserData))
	for u, ts := range d.UserData {
		out.UserData[u] = append([]Ticket(nil), ts...)
	}
	out.UserSummaries = make(map[string]UserSummary, len(d.UserSummaries))
	for u, s := range d.UserSummaries {
		out.UserSummaries[u] = s
	}
	return out
}

// PlannedHours converts story points with the report's ratio.
func (d SprintData) PlannedHours(storyPoints float64) float64 {
	return storyPoints * d.HoursPerStoryPoint
}
