package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("not found")

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &DB{Pool: pool, log: log}, nil
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

// TryAdvisoryLock takes a session-level advisory lock on a dedicated connection, so the
// unlock runs on the same session. unlock is nil when the lock was not acquired.
func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (unlock func(context.Context) error, err error) {
	conn, err := r.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return nil, err
	}
	if !ok {
		conn.Release()
		return nil, nil
	}
	return func(ctx context.Context) error {
		defer conn.Release()
		var released bool
		err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&released)
		if err == nil && !released {
			return errors.New("advisory unlock returned false")
		}
		return err
	}, nil
}

// Report runs

type RunResult struct {
	SprintID      int64
	SprintName    string
	Issues        int
	SubtasksAdded int
	Tickets       int
	Degraded      int
	ArchiveKey    string
	Report        *domain.SprintData
	Err           error
}

type ReportRun struct {
	ID            int64      `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	BoardID       int64      `json:"board_id"`
	Trigger       string     `json:"trigger"`
	SprintID      int64      `json:"sprint_id"`
	SprintName    string     `json:"sprint_name"`
	Issues        int        `json:"issues"`
	SubtasksAdded int        `json:"subtasks_added"`
	Tickets       int        `json:"tickets"`
	Degraded      int        `json:"degraded"`
	ArchiveKey    string     `json:"archive_key"`
	Success       bool       `json:"success"`
	Error         string     `json:"error"`
}

func (r *Repository) StartRun(ctx context.Context, boardID int64, trigger string) (int64, error) {
	const q = `INSERT INTO report_runs(started_at, board_id, trigger, success) VALUES(now(), $1, $2, false) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, boardID, trigger).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) FinishRun(ctx context.Context, id int64, res RunResult) error {
	var report []byte
	if res.Report != nil {
		b, err := json.Marshal(res.Report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		report = b
	}
	errStr := ""
	if res.Err != nil {
		errStr = res.Err.Error()
	}
	const q = `UPDATE report_runs SET finished_at=now(), sprint_id=$2, sprint_name=$3, issues=$4, subtasks_added=$5,
		tickets=$6, degraded=$7, archive_key=$8, report=$9, success=$10, error=$11 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, res.SprintID, res.SprintName, res.Issues, res.SubtasksAdded,
		res.Tickets, res.Degraded, res.ArchiveKey, report, res.Err == nil, errStr)
	return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*ReportRun, error) {
	const q = `SELECT id, started_at, finished_at, board_id, trigger, coalesce(sprint_id,0), coalesce(sprint_name,''),
		coalesce(issues,0), coalesce(subtasks_added,0), coalesce(tickets,0), coalesce(degraded,0),
		coalesce(archive_key,''), coalesce(success,false), coalesce(error,'')
		FROM report_runs ORDER BY id DESC LIMIT 1`
	lr := &ReportRun{}
	err := r.db.Pool.QueryRow(ctx, q).Scan(&lr.ID, &lr.StartedAt, &lr.FinishedAt, &lr.BoardID, &lr.Trigger,
		&lr.SprintID, &lr.SprintName, &lr.Issues, &lr.SubtasksAdded, &lr.Tickets, &lr.Degraded,
		&lr.ArchiveKey, &lr.Success, &lr.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// LatestReport returns the report of the most recent successful run.
func (r *Repository) LatestReport(ctx context.Context) (domain.SprintData, error) {
	const q = `SELECT report FROM report_runs WHERE success AND report IS NOT NULL ORDER BY id DESC LIMIT 1`
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, q).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SprintData{}, ErrNotFound
	}
	if err != nil {
		return domain.SprintData{}, err
	}
	var data domain.SprintData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.SprintData{}, fmt.Errorf("decode report: %w", err)
	}
	return data, nil
}
