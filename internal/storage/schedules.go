package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
)

const scheduleColumns = `
	schedule_id, name, cron_expr, search_params, priority, active,
	last_job_id, created_at, updated_at
`

type scheduleRow struct {
	ScheduleID   string         `db:"schedule_id"`
	Name         string         `db:"name"`
	CronExpr     string         `db:"cron_expr"`
	SearchParams []byte         `db:"search_params"`
	Priority     int16          `db:"priority"`
	Active       bool           `db:"active"`
	LastJobID    sql.NullString `db:"last_job_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r scheduleRow) toDomain() (*domain.SyncSchedule, error) {
	schedule := &domain.SyncSchedule{
		ScheduleID: r.ScheduleID,
		Name:       r.Name,
		CronExpr:   r.CronExpr,
		Priority:   uint8(r.Priority),
		Active:     r.Active,
		LastJobID:  r.LastJobID.String,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if err := json.Unmarshal(r.SearchParams, &schedule.Filter); err != nil {
		return nil, fmt.Errorf("failed to decode schedule %s filter: %w", r.Name, err)
	}
	return schedule, nil
}

// EnsureSchedule inserts the schedule unless one with the same name exists and
// returns the stored row. Re-registering a name never duplicates it.
func (s *Storage) EnsureSchedule(ctx context.Context, schedule *domain.SyncSchedule) (*domain.SyncSchedule, error) {
	query := `
		INSERT INTO sync_schedules (
			schedule_id, name, cron_expr, search_params, priority, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
		ON CONFLICT (name) DO NOTHING
		RETURNING ` + scheduleColumns

	params, err := json.Marshal(schedule.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schedule filter: %w", err)
	}

	var row scheduleRow
	err = s.db.GetContext(ctx, &row, query,
		schedule.ScheduleID,
		schedule.Name,
		schedule.CronExpr,
		string(params),
		int16(schedule.Priority),
		schedule.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return s.GetScheduleByName(ctx, schedule.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	return row.toDomain()
}

func (s *Storage) GetScheduleByName(ctx context.Context, name string) (*domain.SyncSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM sync_schedules WHERE name = $1`

	var row scheduleRow
	if err := s.db.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return row.toDomain()
}

// ListSchedules returns schedules ordered by name.
func (s *Storage) ListSchedules(ctx context.Context, activeOnly bool) ([]*domain.SyncSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM sync_schedules`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	var rows []scheduleRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	schedules := make([]*domain.SyncSchedule, 0, len(rows))
	for _, row := range rows {
		schedule, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

func (s *Storage) SetScheduleLastJob(ctx context.Context, scheduleID, jobID string) error {
	query := `
		UPDATE sync_schedules
		SET last_job_id = $1, updated_at = NOW()
		WHERE schedule_id = $2
	`
	if _, err := s.db.ExecContext(ctx, query, jobID, scheduleID); err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return nil
}
