/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/rs/zerolog"
)

const sprintIssueLimit = 1000

// Collection is the sprint's issue list after subtask discovery.
type Collection struct {
	Issues        []domain.Issue
	SubtasksAdded int
	Degraded      []string
}

// Collector gathers a sprint's issues and the subtasks the sprint endpoint left out.
type Collector struct {
	jira    JiraClient
	points  StoryPoints
	workers int
	log     zerolog.Logger
}

func NewCollector(jc JiraClient, points StoryPoints, workers int, log zerolog.Logger) *Collector {
	return &Collector{jira: jc, points: points, workers: workers, log: log}
}

// Collect fails only when the sprint issue list itself cannot be fetched; subtask lookups
// degrade to warnings.
func (c *Collector) Collect(ctx context.Context, sprintID int64) (Collection, error) {
	page, err := c.jira.SprintIssues(ctx, sprintID, sprintIssueLimit)
	if err != nil {
		return Collection{}, fmt.Errorf("fetch sprint %d issues: %w", sprintID, err)
	}
	var col Collection
	seen := map[string]bool{}
	var parents []string
	for _, m := range issueList(page) {
		is := parseIssue(m, c.points)
		if is.Key == "" || seen[is.Key] {
			continue
		}
		seen[is.Key] = true
		col.Issues = append(col.Issues, is)
		if !is.IsSubtask {
			parents = append(parents, is.Key)
		}
	}

	refs := make([][]string, len(parents))
	reasons := make([]string, len(parents))
	forEach(ctx, len(parents), c.workers, func(ctx context.Context, i int) {
		keys, err := c.subtaskKeys(ctx, parents[i])
		if err != nil {
			reasons[i] = fmt.Sprintf("subtasks of %s: %v", parents[i], err)
			return
		}
		refs[i] = keys
	})
	var missing []string
	wanted := map[string]bool{}
	for i, keys := range refs {
		if reasons[i] != "" {
			c.degrade(&col, parents[i], reasons[i])
		}
		for _, k := range keys {
			if !seen[k] && !wanted[k] {
				wanted[k] = true
				missing = append(missing, k)
			}
		}
	}
	if len(missing) == 0 {
		return col, nil
	}

	fetched := map[string]domain.Issue{}
	batch, err := c.jira.Search(ctx, keysJQL(missing), len(missing))
	if err != nil {
		c.log.Warn().Err(err).Int("keys", len(missing)).Msg("batch subtask search failed, fetching individually")
	} else {
		for _, m := range issueList(batch) {
			is := parseIssue(m, c.points)
			if wanted[is.Key] {
				fetched[is.Key] = is
			}
		}
	}

	// keys the batch did not return are fetched one by one
	var gaps []string
	for _, k := range missing {
		if _, ok := fetched[k]; !ok {
			gaps = append(gaps, k)
		}
	}
	single := make([]*domain.Issue, len(gaps))
	singleErr := make([]error, len(gaps))
	forEach(ctx, len(gaps), c.workers, func(ctx context.Context, i int) {
		m, err := c.jira.Issue(ctx, gaps[i], "")
		if err != nil {
			singleErr[i] = err
			return
		}
		is := parseIssue(m, c.points)
		if is.Key == "" {
			is.Key = gaps[i]
		}
		single[i] = &is
	})
	for i, k := range gaps {
		if singleErr[i] != nil {
			c.degrade(&col, k, fmt.Sprintf("fetch subtask %s: %v", k, singleErr[i]))
			continue
		}
		fetched[k] = *single[i]
	}

	for _, k := range missing {
		is, ok := fetched[k]
		if !ok || seen[is.Key] {
			continue
		}
		seen[is.Key] = true
		col.Issues = append(col.Issues, is)
		col.SubtasksAdded++
	}
	return col, nil
}

func (c *Collector) subtaskKeys(ctx context.Context, parent string) ([]string, error) {
	m, err := c.jira.Issue(ctx, parent, "subtasks")
	if err != nil {
		return nil, err
	}
	fields, _ := m["fields"].(map[string]any)
	arr, _ := fields["subtasks"].([]any)
	keys := make([]string, 0, len(arr))
	for _, it := range arr {
		st, _ := it.(map[string]any)
		if k := toStrAny(st["key"]); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (c *Collector) degrade(col *Collection, key, reason string) {
	c.log.Warn().Str("issue", key).Str("reason", reason).Msg("subtask lookup degraded")
	col.Degraded = append(col.Degraded, reason)
}

func keysJQL(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = "key = " + k
	}
	return strings.Join(parts, " OR ")
}
