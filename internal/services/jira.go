/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/jira"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
)

// JiraClient is the subset of the tracker API the pipeline reads from.
type JiraClient interface {
	BoardSprints(ctx context.Context, boardID int64, startAt, max int, state string) (map[string]any, error)
	Sprint(ctx context.Context, sprintID int64) (map[string]any, error)
	SprintIssues(ctx context.Context, sprintID int64, max int) (map[string]any, error)
	Issue(ctx context.Context, key, fields string) (map[string]any, error)
	Search(ctx context.Context, jql string, max int) (map[string]any, error)
	Worklogs(ctx context.Context, key string, startAt, max int) (map[string]any, error)
	Comments(ctx context.Context, key string, startAt, max int) (map[string]any, error)
}

// ClientFactory builds a client for one connection; requests may carry their own credentials.
type ClientFactory func(conn jira.Connection) JiraClient

func toStrAny(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	}
	return 0
}

// toNumber accepts numbers and strings that start with one; everything else is not a number.
func toNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		p, ok := domain.LeadingNumber(t)
		if !ok {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func displayName(v any) string {
	m, _ := v.(map[string]any)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(toStrAny(m["displayName"]))
}

func parseSprint(m map[string]any) domain.Sprint {
	return domain.Sprint{
		ID:        toInt64(m["id"]),
		Name:      toStrAny(m["name"]),
		State:     toStrAny(m["state"]),
		StartDate: toStrAny(m["startDate"]),
		EndDate:   toStrAny(m["endDate"]),
	}
}

func parseIssue(m map[string]any, points StoryPoints) domain.Issue {
	fields, _ := m["fields"].(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	is := domain.Issue{
		Key:         toStrAny(m["key"]),
		Summary:     toStrAny(fields["summary"]),
		StoryPoints: points.Read(fields),
		Assignee:    displayName(fields["assignee"]),
	}
	if is.Summary == "" {
		is.Summary = "No summary"
	}
	if is.Assignee == "" {
		is.Assignee = domain.Unassigned
	}
	if it, ok := fields["issuetype"].(map[string]any); ok {
		is.IsSubtask, _ = it["subtask"].(bool)
	}
	return is
}

func issueList(page map[string]any) []map[string]any {
	arr, _ := page["issues"].([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
