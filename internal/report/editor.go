/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
)

type EditKind string

const (
	EditTicket     EditKind = "ticket"
	EditSummary    EditKind = "summary"
	EditRenameUser EditKind = "renameUser"
	EditSprint     EditKind = "sprint"
	EditHeader     EditKind = "header"
)

// Ticket, summary and sprint fields accepted by Apply.
const (
	FieldStoryPoints    = "storyPoints"
	FieldHoursLogged    = "hoursLogged"
	FieldSummary        = "summary"
	FieldComments       = "comments"
	FieldTicketDisplay  = "ticketDisplay"
	FieldOwnStoryPoints = "ownStoryPoints"
	FieldTotalHours     = "totalHours"
	FieldSprintName     = "sprintName"
	FieldSprintStart    = "sprintStart"
	FieldSprintEnd      = "sprintEnd"
)

// Value is raw edit input. It accepts JSON strings, numbers and booleans.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	*v = Value(b)
	return nil
}

// Edit is one inline correction. User and Index address a ticket row; Table selects the
// header group ("ticketTable" or "summaryTable") for header edits.
type Edit struct {
	Kind  EditKind `json:"kind"`
	User  string   `json:"user,omitempty"`
	Index int      `json:"index,omitempty"`
	Table string   `json:"table,omitempty"`
	Field string   `json:"field,omitempty"`
	Value Value    `json:"value"`
}

// Apply returns a new report with the edit applied; data is never modified. Numeric fields
// (story points, hours) are coerced and the affected figures and totals recomputed. Free-text
// fields (summary, comments, ticket label, sprint name and dates, headers) are stored as given.
// A field or kind outside those is rejected with domain.ErrUnknownEdit.
func Apply(data domain.SprintData, e Edit) (domain.SprintData, error) {
	out := data.Clone()
	var err error
	switch e.Kind {
	case EditTicket:
		err = applyTicket(&out, e)
	case EditSummary:
		err = applySummary(&out, e)
	case EditRenameUser:
		err = rename(&out, e.User, strings.TrimSpace(string(e.Value)))
	case EditSprint:
		err = applySprint(&out, e)
	case EditHeader:
		err = applyHeader(&out, e)
	default:
		err = fmt.Errorf("%w: kind %q", domain.ErrUnknownEdit, e.Kind)
	}
	if err != nil {
		return data, err
	}
	return out, nil
}

func applyTicket(d *domain.SprintData, e Edit) error {
	tickets, ok := d.UserData[e.User]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownUser, e.User)
	}
	if e.Index < 0 || e.Index >= len(tickets) {
		return fmt.Errorf("%w: %s[%d]", domain.ErrTicketIndex, e.User, e.Index)
	}
	t := &tickets[e.Index]
	switch e.Field {
	case FieldStoryPoints:
		t.StoryPoints = domain.ParseNumber(string(e.Value))
		t.Recompute(d.HoursPerStoryPoint)
		sum := d.UserSummaries[e.User]
		sum.OwnStoryPoints = ownStoryPoints(tickets)
		d.UserSummaries[e.User] = sum
		recomputeTotals(d)
	case FieldHoursLogged:
		t.HoursLogged = domain.ParseHours(string(e.Value))
		t.Recompute(d.HoursPerStoryPoint)
		sum := d.UserSummaries[e.User]
		sum.TotalHours = 0
		for _, tk := range tickets {
			sum.TotalHours += tk.HoursLogged
		}
		sum.TotalHoursFormatted = domain.FormatHours(sum.TotalHours)
		d.UserSummaries[e.User] = sum
		recomputeTotals(d)
	case FieldSummary:
		t.Summary = string(e.Value)
	case FieldComments:
		t.Comments = string(e.Value)
	case FieldTicketDisplay:
		t.DisplayLabel = string(e.Value)
	default:
		return fmt.Errorf("%w: ticket field %q", domain.ErrUnknownEdit, e.Field)
	}
	return nil
}

func ownStoryPoints(tickets []domain.Ticket) float64 {
	var sp float64
	for _, t := range tickets {
		if !t.ContributedButNotOwner {
			sp += t.StoryPoints
		}
	}
	return sp
}

func applySummary(d *domain.SprintData, e Edit) error {
	sum, ok := d.UserSummaries[e.User]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownUser, e.User)
	}
	switch e.Field {
	case FieldOwnStoryPoints:
		sum.OwnStoryPoints = domain.ParseNumber(string(e.Value))
	case FieldTotalHours:
		sum.TotalHours = domain.ParseHours(string(e.Value))
		sum.TotalHoursFormatted = domain.FormatHours(sum.TotalHours)
	default:
		return fmt.Errorf("%w: summary field %q", domain.ErrUnknownEdit, e.Field)
	}
	d.UserSummaries[e.User] = sum
	recomputeTotals(d)
	return nil
}

// rename moves a contributor's rows and summary to a new name, keeping userId and position.
func rename(d *domain.SprintData, from, to string) error {
	if _, ok := d.UserSummaries[from]; !ok {
		if _, ok := d.UserData[from]; !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownUser, from)
		}
	}
	if to == "" {
		return fmt.Errorf("%w: empty user name", domain.ErrUnknownEdit)
	}
	if to == from {
		return nil
	}
	_, takenSum := d.UserSummaries[to]
	_, takenRows := d.UserData[to]
	if takenSum || takenRows {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateUser, to)
	}
	if tickets, ok := d.UserData[from]; ok {
		d.UserData[to] = tickets
		delete(d.UserData, from)
	}
	if sum, ok := d.UserSummaries[from]; ok {
		d.UserSummaries[to] = sum
		delete(d.UserSummaries, from)
	}
	for i, u := range d.Users {
		if u == from {
			d.Users[i] = to
		}
	}
	return nil
}

func applySprint(d *domain.SprintData, e Edit) error {
	switch e.Field {
	case FieldSprintName:
		d.SprintName = string(e.Value)
	case FieldSprintStart:
		d.SprintStart = string(e.Value)
	case FieldSprintEnd:
		d.SprintEnd = string(e.Value)
	default:
		return fmt.Errorf("%w: sprint field %q", domain.ErrUnknownEdit, e.Field)
	}
	return nil
}

func applyHeader(d *domain.SprintData, e Edit) error {
	v := string(e.Value)
	var target *string
	switch e.Table {
	case "ticketTable":
		h := &d.Headers.TicketTable
		target = map[string]*string{
			"ticket":      &h.Ticket,
			"summary":     &h.Summary,
			"storyPoints": &h.StoryPoints,
			"hoursLogged": &h.HoursLogged,
			"difference":  &h.Difference,
			"comments":    &h.Comments,
		}[e.Field]
	case "summaryTable":
		h := &d.Headers.SummaryTable
		target = map[string]*string{
			"user":           &h.User,
			"storyPointsOwn": &h.StoryPointsOwn,
			"hoursLoggedAll": &h.HoursLoggedAll,
			"plannedHours":   &h.PlannedHours,
			"utilization":    &h.Utilization,
		}[e.Field]
	}
	if target == nil {
		return fmt.Errorf("%w: header %s.%s", domain.ErrUnknownEdit, e.Table, e.Field)
	}
	*target = v
	return nil
}

// recomputeTotals rebuilds the report totals from the user summaries.
func recomputeTotals(d *domain.SprintData) {
	var sp, hours float64
	for _, u := range orderedUsers(*d) {
		s := d.UserSummaries[u]
		sp += s.OwnStoryPoints
		hours += s.TotalHours
	}
	d.Totals.AllStoryPoints = sp
	d.Totals.AllHours = hours
	d.Totals.AllHoursFormatted = domain.FormatHours(hours)
}

// orderedUsers lists contributors in report order. Keys missing from Users (reports
// built by other clients) follow in name order.
func orderedUsers(d domain.SprintData) []string {
	seen := make(map[string]bool, len(d.Users))
	out := make([]string, 0, len(d.UserSummaries))
	for _, u := range d.Users {
		if seen[u] {
			continue
		}
		_, hasSum := d.UserSummaries[u]
		_, hasRows := d.UserData[u]
		if hasSum || hasRows {
			seen[u] = true
			out = append(out, u)
		}
	}
	var rest []string
	for u := range d.UserSummaries {
		if !seen[u] {
			seen[u] = true
			rest = append(rest, u)
		}
	}
	for u := range d.UserData {
		if !seen[u] {
			seen[u] = true
			rest = append(rest, u)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
