/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/jira"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/report"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/repo"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Service interface {
	ListSprints(ctx context.Context, conn jira.Connection, boardID int64) ([]domain.Sprint, error)
	BuildReport(ctx context.Context, req services.ReportRequest) (domain.SprintData, services.RunStats, error)
	Latest(ctx context.Context) (domain.SprintData, error)
	LastRun(ctx context.Context) (*repo.ReportRun, error)
}

// Runner triggers the scheduled report outside the schedule.
type Runner interface {
	RunNow(ctx context.Context, trigger string) (bool, error)
}

type Handlers struct {
	cfg    config.Config
	log    zerolog.Logger
	svc    Service
	runner Runner
	relay  *http.Client
	now    func() time.Time
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc Service, runner Runner) *Handlers {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Handlers{cfg: cfg, log: log, svc: svc, runner: runner, relay: &http.Client{Timeout: timeout}, now: time.Now}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// JiraProxy forwards a credentialed GET to the tracker and passes the JSON body through.
func (h *Handlers) JiraProxy(c *gin.Context) {
	var req jira.RelayRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Validate() != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": jira.ErrRelayParams.Error()})
		return
	}
	if !req.HostAllowed(h.cfg.RelayHosts()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "host not allowed"})
		return
	}
	body, err := jira.Forward(c.Request.Context(), h.relay, req)
	if err != nil {
		var apiErr *jira.APIError
		if errors.As(err, &apiErr) {
			c.JSON(apiErr.Status, gin.H{"error": fmt.Sprintf("Jira API error: %d", apiErr.Status), "details": apiErr.Body})
			return
		}
		h.log.Warn().Err(err).Msg("jira relay failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch from Jira", "details": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

type sprintsRequest struct {
	Connection jira.Connection `json:"connection"`
	BoardID    int64           `json:"boardId"`
	Previous   int64           `json:"previousSprintId"`
}

type sprintView struct {
	domain.Sprint
	Label string `json:"label"`
}

// Sprints lists the board's sprints with their display label and the preselected one.
func (h *Handlers) Sprints(c *gin.Context) {
	var req sprintsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sprints, err := h.svc.ListSprints(c.Request.Context(), req.Connection, req.BoardID)
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]sprintView, len(sprints))
	for i, s := range sprints {
		views[i] = sprintView{Sprint: s, Label: s.Label()}
	}
	resp := gin.H{"sprints": views}
	if id, ok := services.DefaultSelection(sprints, req.Previous); ok {
		resp["selected"] = id
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) Report(c *gin.Context) {
	var req services.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, stats, err := h.svc.BuildReport(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": data, "stats": stats})
}

type editRequest struct {
	Report domain.SprintData `json:"report"`
	Edit   report.Edit       `json:"edit"`
}

// EditReport applies one correction to a client-held report and returns the new report.
func (h *Handlers) EditReport(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := report.Apply(req.Report, req.Edit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) ExportCSV(c *gin.Context) {
	var data domain.SprintData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(h.now())))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handlers) LatestReport(c *gin.Context) {
	data, err := h.svc.Latest(c.Request.Context())
	if errors.Is(err, services.ErrNoReport) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *Handlers) LastRun(c *gin.Context) {
	lr, err := h.svc.LastRun(c.Request.Context())
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no runs recorded"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lr)
}

func (h *Handlers) RunNow(c *gin.Context) {
	// detached from the request so the run survives the response
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := h.runner.RunNow(ctx, "admin"); err != nil {
			h.log.Error().Err(err).Msg("admin run failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	var apiErr *jira.APIError
	switch {
	case errors.Is(err, domain.ErrMissingCredentials), errors.Is(err, domain.ErrMissingBoard):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoSprint), errors.Is(err, domain.ErrMissingDateWindow):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound {
			status = apiErr.Status
		}
		c.JSON(status, gin.H{"error": fmt.Sprintf("Jira API error: %d", apiErr.Status), "details": apiErr.Body})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("report request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

