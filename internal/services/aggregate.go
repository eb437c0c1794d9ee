/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/google/uuid"
)

// EnrichedIssue is one issue with its worklog and comment lookups already done.
type EnrichedIssue struct {
	Issue    domain.Issue
	Worked   WorkedHours
	Comments string
}

func NewUserID() string { return "user-" + uuid.NewString() }

// Aggregate folds enriched issues, in order, into the per-contributor report. Contributors
// are the issue's worklog authors plus its assignee; an unassigned issue only yields rows
// for people who logged time on it.
func Aggregate(sp domain.Sprint, issues []EnrichedIssue, hoursPerStoryPoint float64, newID func() string) domain.SprintData {
	if newID == nil {
		newID = NewUserID
	}
	name := sp.Name
	if name == "" {
		name = "Unnamed Sprint"
	}
	data := domain.SprintData{
		SprintID:           sp.ID,
		SprintName:         name,
		SprintStart:        sp.StartDate,
		SprintEnd:          sp.EndDate,
		SprintState:        sp.State,
		HoursPerStoryPoint: hoursPerStoryPoint,
		UserData:           map[string][]domain.Ticket{},
		UserSummaries:      map[string]domain.UserSummary{},
		Headers:            domain.DefaultHeaders(),
	}

	for _, ei := range issues {
		is := ei.Issue
		comments := ei.Comments
		if comments == "" {
			comments = noComments
		}
		for _, user := range contributors(is, ei.Worked) {
			owner := user == is.Assignee
			t := domain.Ticket{
				TicketKey:              is.Key,
				DisplayLabel:           is.Key,
				Summary:                is.Summary,
				StoryPoints:            is.StoryPoints,
				HoursLogged:            ei.Worked.Hours[user],
				ContributedButNotOwner: !owner,
				Comments:               comments,
			}
			if !owner {
				t.DisplayLabel = is.Key + " (" + is.Assignee + ")"
			}
			t.Recompute(hoursPerStoryPoint)

			sum, ok := data.UserSummaries[user]
			if !ok {
				data.Users = append(data.Users, user)
			}
			data.UserData[user] = append(data.UserData[user], t)
			sum.TotalHours += t.HoursLogged
			if owner {
				sum.OwnStoryPoints += is.StoryPoints
				data.Totals.AllStoryPoints += is.StoryPoints
			}
			data.UserSummaries[user] = sum
			data.Totals.AllHours += t.HoursLogged
		}
	}

	for _, u := range data.Users {
		sum := data.UserSummaries[u]
		sum.TotalHoursFormatted = domain.FormatHours(sum.TotalHours)
		if sum.UserID == "" {
			sum.UserID = newID()
		}
		data.UserSummaries[u] = sum
	}
	data.Totals.AllHoursFormatted = domain.FormatHours(data.Totals.AllHours)
	return data
}

func contributors(is domain.Issue, worked WorkedHours) []string {
	out := append([]string(nil), worked.Authors...)
	if is.Assignee == domain.Unassigned {
		return out
	}
	if _, ok := worked.Hours[is.Assignee]; !ok {
		out = append(out, is.Assignee)
	}
	return out
}
