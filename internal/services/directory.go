/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
)

const (
	sprintPageSize = 50
	sprintStates   = "active,future,closed"
)

// FetchSprints pages through a board's sprints and returns them in presentation order.
// Any page failure aborts the listing; no partial list is returned.
func FetchSprints(ctx context.Context, jc JiraClient, boardID int64) ([]domain.Sprint, error) {
	var out []domain.Sprint
	startAt := 0
	for {
		page, err := jc.BoardSprints(ctx, boardID, startAt, sprintPageSize, sprintStates)
		if err != nil {
			return nil, fmt.Errorf("list sprints board=%d startAt=%d: %w", boardID, startAt, err)
		}
		vals, _ := page["values"].([]any)
		for _, v := range vals {
			if m, ok := v.(map[string]any); ok {
				out = append(out, parseSprint(m))
			}
		}
		isLast, _ := page["isLast"].(bool)
		if isLast || len(vals) < sprintPageSize {
			break
		}
		startAt += sprintPageSize
	}
	SortSprints(out)
	return out, nil
}

// SortSprints orders by state rank (active, future, closed, unknown) and then newest first,
// using startDate and falling back to endDate.
func SortSprints(sprints []domain.Sprint) {
	sort.SliceStable(sprints, func(i, j int) bool {
		ri, rj := sprints[i].StateRank(), sprints[j].StateRank()
		if ri != rj {
			return ri < rj
		}
		return sortDate(sprints[i]).After(sortDate(sprints[j]))
	})
}

func sortDate(s domain.Sprint) time.Time {
	if t, ok := domain.ParseTime(s.StartDate); ok {
		return t
	}
	if t, ok := domain.ParseTime(s.EndDate); ok {
		return t
	}
	return time.Unix(0, 0).UTC()
}

// DefaultSelection picks the sprint a listing should preselect: the previous choice when it
// is still listed, else the first active sprint, else the first entry.
func DefaultSelection(sprints []domain.Sprint, previous int64) (int64, bool) {
	if len(sprints) == 0 {
		return 0, false
	}
	if previous != 0 {
		for _, s := range sprints {
			if s.ID == previous {
				return previous, true
			}
		}
	}
	for _, s := range sprints {
		if s.HasState(domain.StateActive) {
			return s.ID, true
		}
	}
	return sprints[0].ID, true
}
