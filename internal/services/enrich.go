/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/rs/zerolog"
)

// Enrichment is the outcome of one per-issue lookup. A degraded outcome still carries a
// usable (empty) value; Degraded holds the reason.
type Enrichment[T any] struct {
	Value    T
	Degraded string
}

func (e Enrichment[T]) IsDegraded() bool { return e.Degraded != "" }

func okResult[T any](v T) Enrichment[T] { return Enrichment[T]{Value: v} }

func degradedResult[T any](v T, reason string) Enrichment[T] {
	return Enrichment[T]{Value: v, Degraded: reason}
}

// Window is the inclusive sprint date range worklogs are filtered to.
type Window struct {
	Start time.Time
	End   time.Time
}

var hasClock = regexp.MustCompile(`T\d`)

// NewWindow parses the sprint dates. An end date without a time of day covers that whole day.
func NewWindow(start, end string) (Window, error) {
	s, ok := domain.ParseTime(start)
	if !ok {
		return Window{}, fmt.Errorf("sprint start %q: %w", start, domain.ErrMissingDateWindow)
	}
	e, ok := domain.ParseTime(end)
	if !ok {
		return Window{}, fmt.Errorf("sprint end %q: %w", end, domain.ErrMissingDateWindow)
	}
	if !hasClock.MatchString(end) {
		y, m, d := e.Date()
		e = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	}
	return Window{Start: s, End: e}, nil
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// WorkedHours is per-author hours; Authors keeps first-appearance order.
type WorkedHours struct {
	Authors []string
	Hours   map[string]float64
}

func (w *WorkedHours) add(author string, hours float64) {
	if w.Hours == nil {
		w.Hours = map[string]float64{}
	}
	if _, ok := w.Hours[author]; !ok {
		w.Authors = append(w.Authors, author)
	}
	w.Hours[author] += hours
}

const (
	worklogPageSize = 100
	commentPageSize = 100
	noComments      = "-"
)

type Enricher struct {
	jira JiraClient
	log  zerolog.Logger
}

func NewEnricher(jc JiraClient, log zerolog.Logger) *Enricher {
	return &Enricher{jira: jc, log: log}
}

// Worklogs sums in-window hours per author. Fetch failures degrade to no hours.
func (e *Enricher) Worklogs(ctx context.Context, key string, w Window) Enrichment[WorkedHours] {
	entries, err := e.worklogEntries(ctx, key)
	if err != nil {
		reason := fmt.Sprintf("worklogs of %s: %v", key, err)
		e.log.Warn().Str("issue", key).Str("reason", reason).Msg("worklog enrichment degraded")
		return degradedResult(WorkedHours{}, reason)
	}
	return okResult(SumWorklogs(entries, w))
}

// SumWorklogs folds entries inside the window into per-author hours.
func SumWorklogs(entries []domain.WorklogEntry, w Window) WorkedHours {
	var out WorkedHours
	for _, en := range entries {
		if !w.Contains(en.LoggedAt) {
			continue
		}
		out.add(en.Author, en.LoggedHours)
	}
	return out
}

func (e *Enricher) worklogEntries(ctx context.Context, key string) ([]domain.WorklogEntry, error) {
	var out []domain.WorklogEntry
	startAt := 0
	for {
		page, err := e.jira.Worklogs(ctx, key, startAt, worklogPageSize)
		if err != nil {
			return nil, err
		}
		arr, _ := page["worklogs"].([]any)
		for _, it := range arr {
			m, _ := it.(map[string]any)
			if m == nil {
				continue
			}
			at, ok := domain.ParseTime(toStrAny(m["started"]))
			if !ok {
				continue
			}
			secs, _ := toNumber(m["timeSpentSeconds"])
			author := displayName(m["author"])
			if author == "" {
				author = "Unknown"
			}
			out = append(out, domain.WorklogEntry{Author: author, LoggedHours: secs / 3600, LoggedAt: at})
		}
		startAt += len(arr)
		total, hasTotal := toNumber(page["total"])
		if len(arr) == 0 || !hasTotal || startAt >= int(total) {
			break
		}
	}
	return out, nil
}

// Comments renders every comment as "[author] (yyyy-mm-dd): body" joined with " || ",
// or "-" when there are none or they cannot be fetched.
func (e *Enricher) Comments(ctx context.Context, key string) Enrichment[string] {
	var lines []string
	startAt := 0
	for {
		page, err := e.jira.Comments(ctx, key, startAt, commentPageSize)
		if err != nil {
			reason := fmt.Sprintf("comments of %s: %v", key, err)
			e.log.Warn().Str("issue", key).Str("reason", reason).Msg("comment enrichment degraded")
			return degradedResult(noComments, reason)
		}
		arr, _ := page["comments"].([]any)
		for _, it := range arr {
			m, _ := it.(map[string]any)
			if m == nil {
				continue
			}
			lines = append(lines, renderComment(m))
		}
		startAt += len(arr)
		total, hasTotal := toNumber(page["total"])
		if len(arr) == 0 || !hasTotal || startAt >= int(total) {
			break
		}
	}
	if len(lines) == 0 {
		return okResult(noComments)
	}
	return okResult(strings.Join(lines, " || "))
}

func renderComment(m map[string]any) string {
	author := displayName(m["author"])
	if author == "" {
		author = "Unknown"
	}
	date := "-"
	if t, ok := domain.ParseTime(toStrAny(m["created"])); ok {
		date = t.Format("2006-01-02")
	}
	return fmt.Sprintf("[%s] (%s): %s", author, date, commentBody(m["body"]))
}
