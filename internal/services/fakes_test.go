package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var errBoom = errors.New("boom")

// fakeJira serves canned tracker payloads and counts calls per endpoint.
type fakeJira struct {
	mu sync.Mutex

	sprintPages  []map[string]any
	sprintPageFn func(startAt int) (map[string]any, error)
	sprints      map[int64]map[string]any

	sprintIssues    []any
	sprintIssuesErr error

	issues   map[string]map[string]any
	issueErr map[string]error

	searchFn func(jql string) (map[string]any, error)

	worklogs   map[string][]any
	worklogErr map[string]error
	comments   map[string][]any
	commentErr map[string]error
	pageLimit  int

	calls map[string]int
	jqls  []string
}

func newFakeJira() *fakeJira {
	return &fakeJira{
		sprints:    map[int64]map[string]any{},
		issues:     map[string]map[string]any{},
		issueErr:   map[string]error{},
		worklogs:   map[string][]any{},
		worklogErr: map[string]error{},
		comments:   map[string][]any{},
		commentErr: map[string]error{},
		calls:      map[string]int{},
	}
}

func (f *fakeJira) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeJira) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeJira) BoardSprints(ctx context.Context, boardID int64, startAt, max int, state string) (map[string]any, error) {
	f.count("boardSprints")
	if f.sprintPageFn != nil {
		return f.sprintPageFn(startAt)
	}
	i := startAt / sprintPageSize
	if i >= len(f.sprintPages) {
		return map[string]any{"values": []any{}, "isLast": true}, nil
	}
	return f.sprintPages[i], nil
}

func (f *fakeJira) Sprint(ctx context.Context, sprintID int64) (map[string]any, error) {
	f.count("sprint")
	m, ok := f.sprints[sprintID]
	if !ok {
		return nil, fmt.Errorf("sprint %d: %w", sprintID, errBoom)
	}
	return m, nil
}

func (f *fakeJira) SprintIssues(ctx context.Context, sprintID int64, max int) (map[string]any, error) {
	f.count("sprintIssues")
	if f.sprintIssuesErr != nil {
		return nil, f.sprintIssuesErr
	}
	return map[string]any{"issues": f.sprintIssues}, nil
}

func (f *fakeJira) Issue(ctx context.Context, key, fields string) (map[string]any, error) {
	f.count("issue:" + key)
	if err := f.issueErr[key]; err != nil {
		return nil, err
	}
	m, ok := f.issues[key]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", key, errBoom)
	}
	return m, nil
}

func (f *fakeJira) Search(ctx context.Context, jql string, max int) (map[string]any, error) {
	f.count("search")
	f.mu.Lock()
	f.jqls = append(f.jqls, jql)
	f.mu.Unlock()
	if f.searchFn != nil {
		return f.searchFn(jql)
	}
	var out []any
	for _, part := range strings.Split(jql, " OR ") {
		key := strings.TrimPrefix(part, "key = ")
		if m, ok := f.issues[key]; ok {
			out = append(out, m)
		}
	}
	return map[string]any{"issues": out}, nil
}

func (f *fakeJira) page(all []any, startAt, max int) []any {
	limit := max
	if f.pageLimit > 0 && f.pageLimit < limit {
		limit = f.pageLimit
	}
	if startAt >= len(all) {
		return []any{}
	}
	end := startAt + limit
	if end > len(all) {
		end = len(all)
	}
	return all[startAt:end]
}

func (f *fakeJira) Worklogs(ctx context.Context, key string, startAt, max int) (map[string]any, error) {
	f.count("worklogs:" + key)
	if err := f.worklogErr[key]; err != nil {
		return nil, err
	}
	all := f.worklogs[key]
	return map[string]any{"startAt": float64(startAt), "total": float64(len(all)), "worklogs": f.page(all, startAt, max)}, nil
}

func (f *fakeJira) Comments(ctx context.Context, key string, startAt, max int) (map[string]any, error) {
	f.count("comments:" + key)
	if err := f.commentErr[key]; err != nil {
		return nil, err
	}
	all := f.comments[key]
	return map[string]any{"startAt": float64(startAt), "total": float64(len(all)), "comments": f.page(all, startAt, max)}, nil
}

// payload builders

func sprintJSON(id int64, name, state, start, end string) map[string]any {
	m := map[string]any{"id": float64(id), "name": name, "state": state}
	if start != "" {
		m["startDate"] = start
	}
	if end != "" {
		m["endDate"] = end
	}
	return m
}

func issueJSON(key, assignee string, points any, subtask bool, subtasks ...string) map[string]any {
	fields := map[string]any{
		"summary":   "Summary of " + key,
		"issuetype": map[string]any{"subtask": subtask},
	}
	if assignee != "" {
		fields["assignee"] = map[string]any{"displayName": assignee}
	}
	if points != nil {
		fields["customfield_10016"] = points
	}
	var refs []any
	for _, st := range subtasks {
		refs = append(refs, map[string]any{"key": st})
	}
	fields["subtasks"] = refs
	return map[string]any{"key": key, "fields": fields}
}

func worklogJSON(author, started string, seconds float64) map[string]any {
	return map[string]any{
		"author":           map[string]any{"displayName": author},
		"started":          started,
		"timeSpentSeconds": seconds,
	}
}

func commentJSON(author, created string, body any) map[string]any {
	return map[string]any{
		"author":  map[string]any{"displayName": author},
		"created": created,
		"body":    body,
	}
}
