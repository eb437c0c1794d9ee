package http_test

import (
	"context"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/jira"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/repo"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/services"
)

type mockService struct {
	listFn    func(ctx context.Context, conn jira.Connection, boardID int64) ([]domain.Sprint, error)
	buildFn   func(ctx context.Context, req services.ReportRequest) (domain.SprintData, services.RunStats, error)
	latestFn  func(ctx context.Context) (domain.SprintData, error)
	lastRunFn func(ctx context.Context) (*repo.ReportRun, error)
}

func (m *mockService) ListSprints(ctx context.Context, conn jira.Connection, boardID int64) ([]domain.Sprint, error) {
	if m.listFn != nil {
		return m.listFn(ctx, conn, boardID)
	}
	return nil, nil
}

func (m *mockService) BuildReport(ctx context.Context, req services.ReportRequest) (domain.SprintData, services.RunStats, error) {
	if m.buildFn != nil {
		return m.buildFn(ctx, req)
	}
	return domain.SprintData{}, services.RunStats{}, nil
}

func (m *mockService) Latest(ctx context.Context) (domain.SprintData, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx)
	}
	return domain.SprintData{}, services.ErrNoReport
}

func (m *mockService) LastRun(ctx context.Context) (*repo.ReportRun, error) {
	if m.lastRunFn != nil {
		return m.lastRunFn(ctx)
	}
	return nil, repo.ErrNotFound
}

type mockRunner struct {
	triggers chan string
}

func (m *mockRunner) RunNow(ctx context.Context, trigger string) (bool, error) {
	m.triggers <- trigger
	return true, nil
}
