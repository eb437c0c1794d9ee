/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/jira"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/s3"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/cache"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/report"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/repo"
	"github.com/rs/zerolog"
)

var ErrNoReport = errors.New("no report available yet")

type LLM interface {
	Summarize(ctx context.Context, kpis map[string]float64, notes []string) (string, error)
}

type Notifier interface {
	SendMessagePlain(ctx context.Context, chatID int64, text string) error
}

type Archiver interface {
	PutCSV(ctx context.Context, objectKey string, payload []byte) error
}

// RunStore records scheduled runs; *repo.Repository implements it.
type RunStore interface {
	StartRun(ctx context.Context, boardID int64, trigger string) (int64, error)
	FinishRun(ctx context.Context, id int64, res repo.RunResult) error
	GetLastRun(ctx context.Context) (*repo.ReportRun, error)
	LatestReport(ctx context.Context) (domain.SprintData, error)
}

// Deps are the optional collaborators; nil members switch the feature off.
type Deps struct {
	Cache   cache.SprintCache
	Runs    RunStore
	Archive Archiver
	LLM     LLM
	TG      Notifier
}

type Service struct {
	cfg     config.Config
	log     zerolog.Logger
	clients ClientFactory
	cache   cache.SprintCache
	runs    RunStore
	archive Archiver
	llm     LLM
	tg      Notifier
	points  StoryPoints
	now     func() time.Time
	newID   func() string

	mu     sync.RWMutex
	latest *domain.SprintData
}

func New(cfg config.Config, log zerolog.Logger, clients ClientFactory, d Deps) *Service {
	if d.Cache == nil {
		d.Cache = cache.Noop{}
	}
	return &Service{
		cfg:     cfg,
		log:     log,
		clients: clients,
		cache:   d.Cache,
		runs:    d.Runs,
		archive: d.Archive,
		llm:     d.LLM,
		tg:      d.TG,
		points:  NewStoryPoints(cfg.StoryPointFieldID()),
		now:     time.Now,
		newID:   NewUserID,
	}
}

// ReportRequest selects what to aggregate. Empty connection fields and a zero board fall back
// to the server configuration.
type ReportRequest struct {
	Connection         jira.Connection `json:"connection"`
	BoardID            int64           `json:"boardId"`
	SprintID           *int64          `json:"sprintId,omitempty"`
	HoursPerStoryPoint float64         `json:"hoursPerStoryPoint,omitempty"`
}

type RunStats struct {
	Issues        int `json:"issues"`
	SubtasksAdded int `json:"subtasksAdded"`
	Tickets       int `json:"tickets"`
	Degraded      int `json:"degraded"`
}

func (s *Service) connection(c jira.Connection) (jira.Connection, error) {
	c = c.WithDefaults(jira.Connection{BaseURL: s.cfg.JiraBaseURL, Email: s.cfg.JiraEmail, APIToken: s.cfg.JiraAPIToken})
	if !c.Complete() {
		return jira.Connection{}, domain.ErrMissingCredentials
	}
	return c, nil
}

func (s *Service) board(id int64) int64 {
	if id > 0 {
		return id
	}
	return s.cfg.JiraBoardID
}

// ListSprints returns the board's sprints in presentation order, served from cache when fresh.
// Cached listings are keyed by the caller's credentials, so a different token always reaches
// the tracker.
func (s *Service) ListSprints(ctx context.Context, conn jira.Connection, boardID int64) ([]domain.Sprint, error) {
	conn, err := s.connection(conn)
	if err != nil {
		return nil, err
	}
	boardID = s.board(boardID)
	if boardID <= 0 {
		return nil, domain.ErrMissingBoard
	}
	scope := cache.Scope(conn.BaseURL, conn.Email, conn.APIToken)
	if cached, ok := s.cache.GetSprints(ctx, scope, boardID); ok {
		return cached, nil
	}
	sprints, err := FetchSprints(ctx, s.clients(conn), boardID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.PutSprints(ctx, scope, boardID, sprints); err != nil {
		s.log.Warn().Err(err).Int64("board", boardID).Msg("sprint cache write failed")
	}
	return sprints, nil
}

func (s *Service) ResolveSprint(ctx context.Context, conn jira.Connection, boardID int64, sprintID *int64) (domain.Sprint, error) {
	conn, err := s.connection(conn)
	if err != nil {
		return domain.Sprint{}, err
	}
	return ResolveSprint(ctx, s.clients(conn), s.board(boardID), sprintID)
}

// BuildReport runs the whole pipeline: resolve, collect, enrich, aggregate.
func (s *Service) BuildReport(ctx context.Context, req ReportRequest) (domain.SprintData, RunStats, error) {
	var stats RunStats
	conn, err := s.connection(req.Connection)
	if err != nil {
		return domain.SprintData{}, stats, err
	}
	hpsp := req.HoursPerStoryPoint
	if hpsp <= 0 {
		hpsp = s.cfg.HoursPerStoryPoint
	}
	jc := s.clients(conn)

	sp, err := ResolveSprint(ctx, jc, s.board(req.BoardID), req.SprintID)
	if err != nil {
		return domain.SprintData{}, stats, err
	}
	win, err := NewWindow(sp.StartDate, sp.EndDate)
	if err != nil {
		return domain.SprintData{}, stats, err
	}
	col, err := NewCollector(jc, s.points, s.cfg.WorkersJira, s.log).Collect(ctx, sp.ID)
	if err != nil {
		return domain.SprintData{}, stats, err
	}
	stats.Issues = len(col.Issues)
	stats.SubtasksAdded = col.SubtasksAdded
	stats.Degraded = len(col.Degraded)

	enriched, degraded := s.enrich(ctx, jc, col.Issues, win)
	stats.Degraded += degraded
	if err := ctx.Err(); err != nil {
		return domain.SprintData{}, stats, err
	}

	data := Aggregate(sp, enriched, hpsp, s.newID)
	for _, ts := range data.UserData {
		stats.Tickets += len(ts)
	}
	s.log.Info().Int64("sprint", sp.ID).Int("issues", stats.Issues).Int("subtasks_added", stats.SubtasksAdded).
		Int("tickets", stats.Tickets).Int("degraded", stats.Degraded).Msg("report built")
	return data, stats, nil
}

// enrich looks up worklogs and comments for every issue on the worker pool. Results land in
// per-issue slots so the fold that follows sees them in issue order.
func (s *Service) enrich(ctx context.Context, jc JiraClient, issues []domain.Issue, win Window) ([]EnrichedIssue, int) {
	en := NewEnricher(jc, s.log)
	out := make([]EnrichedIssue, len(issues))
	flags := make([]int, len(issues))
	forEach(ctx, len(issues), s.cfg.WorkersJira, func(ctx context.Context, i int) {
		is := issues[i]
		wl := en.Worklogs(ctx, is.Key, win)
		cm := en.Comments(ctx, is.Key)
		out[i] = EnrichedIssue{Issue: is, Worked: wl.Value, Comments: cm.Value}
		if wl.IsDegraded() {
			flags[i]++
		}
		if cm.IsDegraded() {
			flags[i]++
		}
	})
	n := 0
	for _, f := range flags {
		n += f
	}
	return out, n
}

// RunScheduled builds the configured board's default report, keeps it as the latest report,
// archives the CSV and sends the digest. trigger is recorded with the run ("cron", "admin").
func (s *Service) RunScheduled(ctx context.Context, trigger string) error {
	boardID := s.cfg.JiraBoardID
	var runID int64
	if s.runs != nil {
		id, err := s.runs.StartRun(ctx, boardID, trigger)
		if err != nil {
			s.log.Error().Err(err).Msg("start report run failed")
		}
		runID = id
	}
	var res repo.RunResult
	defer func() {
		if s.runs != nil && runID != 0 {
			if err := s.runs.FinishRun(context.WithoutCancel(ctx), runID, res); err != nil {
				s.log.Error().Err(err).Int64("run", runID).Msg("finish report run failed")
			}
		}
	}()

	s.log.Info().Str("trigger", trigger).Int64("board", boardID).Msg("scheduled report: start")
	data, stats, err := s.BuildReport(ctx, ReportRequest{BoardID: boardID})
	res.Issues, res.SubtasksAdded, res.Tickets, res.Degraded = stats.Issues, stats.SubtasksAdded, stats.Tickets, stats.Degraded
	if err != nil {
		res.Err = err
		return fmt.Errorf("scheduled report: %w", err)
	}
	res.SprintID, res.SprintName, res.Report = data.SprintID, data.SprintName, &data
	s.setLatest(data)

	if s.archive != nil {
		var buf bytes.Buffer
		if err := report.WriteCSV(&buf, data); err != nil {
			s.log.Error().Err(err).Msg("render csv failed")
		} else {
			key := s3.ObjectKey(boardID, data.SprintName, s.now())
			if err := s.archive.PutCSV(ctx, key, buf.Bytes()); err != nil {
				s.log.Error().Err(err).Str("key", key).Msg("archive csv failed")
			} else {
				res.ArchiveKey = key
			}
		}
	}

	if s.tg != nil && len(s.cfg.TelegramChatIDs) > 0 {
		narrative := s.narrative(ctx, data, stats)
		parts := chunkText(renderDigest(data, stats, narrative), 3800)
		for _, chat := range s.cfg.TelegramChatIDs {
			for _, p := range parts {
				if err := s.tg.SendMessagePlain(ctx, chat, p); err != nil {
					s.log.Error().Err(err).Int64("chat", chat).Msg("telegram send failed")
					break
				}
			}
		}
	}
	s.log.Info().Int64("sprint", data.SprintID).Msg("scheduled report: done")
	return nil
}

func (s *Service) narrative(ctx context.Context, data domain.SprintData, stats RunStats) string {
	if s.llm == nil {
		return ""
	}
	var notes []string
	if stats.Degraded > 0 {
		notes = append(notes, fmt.Sprintf("%d issue lookups failed; their hours or comments are missing", stats.Degraded))
	}
	out, err := s.llm.Summarize(ctx, reportKPIs(data), notes)
	if err != nil {
		s.log.Warn().Err(err).Msg("llm summary failed")
		return ""
	}
	return out
}

func (s *Service) setLatest(d domain.SprintData) {
	c := d.Clone()
	s.mu.Lock()
	s.latest = &c
	s.mu.Unlock()
}

// Latest returns the most recent scheduled report, from memory or the run log.
func (s *Service) Latest(ctx context.Context) (domain.SprintData, error) {
	s.mu.RLock()
	l := s.latest
	s.mu.RUnlock()
	if l != nil {
		return l.Clone(), nil
	}
	if s.runs == nil {
		return domain.SprintData{}, ErrNoReport
	}
	d, err := s.runs.LatestReport(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.SprintData{}, ErrNoReport
	}
	return d, err
}

func (s *Service) LastRun(ctx context.Context) (*repo.ReportRun, error) {
	if s.runs == nil {
		return nil, repo.ErrNotFound
	}
	return s.runs.GetLastRun(ctx)
}
