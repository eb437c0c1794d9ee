package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
)

// ResolveSprint returns the sprint to report on. An explicit id is fetched directly;
// otherwise the first active sprint wins, then the most recently ended closed sprint.
// The result always carries a date window.
func ResolveSprint(ctx context.Context, jc JiraClient, boardID int64, sprintID *int64) (domain.Sprint, error) {
	var sp domain.Sprint
	if sprintID != nil && *sprintID > 0 {
		m, err := jc.Sprint(ctx, *sprintID)
		if err != nil {
			return domain.Sprint{}, fmt.Errorf("fetch sprint %d: %w", *sprintID, err)
		}
		sp = parseSprint(m)
		if sp.ID == 0 {
			sp.ID = *sprintID
		}
	} else {
		if boardID <= 0 {
			return domain.Sprint{}, domain.ErrMissingBoard
		}
		sprints, err := FetchSprints(ctx, jc, boardID)
		if err != nil {
			return domain.Sprint{}, err
		}
		picked, ok := pickSprint(sprints)
		if !ok {
			return domain.Sprint{}, domain.ErrNoSprint
		}
		sp = picked
	}
	return ensureDateWindow(ctx, jc, sp)
}

// pickSprint does not depend on the listing order.
func pickSprint(sprints []domain.Sprint) (domain.Sprint, bool) {
	for _, s := range sprints {
		if s.HasState(domain.StateActive) {
			return s, true
		}
	}
	var (
		best    domain.Sprint
		bestEnd time.Time
		found   bool
	)
	for _, s := range sprints {
		if !s.HasState(domain.StateClosed) {
			continue
		}
		end, ok := domain.ParseTime(s.EndDate)
		if !ok {
			end = time.Unix(0, 0).UTC()
		}
		if !found || end.After(bestEnd) {
			best, bestEnd, found = s, end, true
		}
	}
	return best, found
}

func ensureDateWindow(ctx context.Context, jc JiraClient, sp domain.Sprint) (domain.Sprint, error) {
	if sp.HasDateWindow() {
		return sp, nil
	}
	m, err := jc.Sprint(ctx, sp.ID)
	if err != nil {
		return domain.Sprint{}, fmt.Errorf("refetch sprint %d: %w", sp.ID, err)
	}
	detail := parseSprint(m)
	if strings.TrimSpace(sp.StartDate) == "" {
		sp.StartDate = detail.StartDate
	}
	if strings.TrimSpace(sp.EndDate) == "" {
		sp.EndDate = detail.EndDate
	}
	if !sp.HasDateWindow() {
		return domain.Sprint{}, fmt.Errorf("sprint %d: %w", sp.ID, domain.ErrMissingDateWindow)
	}
	return sp, nil
}
