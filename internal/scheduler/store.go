package scheduler

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

// ConfigStore persists per-tenant scheduler jobs in the same database
// as the warehouse, in a company_scheduler_config table.
type ConfigStore struct {
	db *sql.DB
}

// NewConfigStore wraps db.
func NewConfigStore(db *sql.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// ListEnabled returns every enabled job definition, read on process
// start to seed the live schedule.
func (s *ConfigStore) ListEnabled(ctx context.Context) ([]model.SchedulerConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_name, enabled, interval, value, time, updated_at
		FROM company_scheduler_config
		WHERE enabled = TRUE
	`)
	if err != nil {
		return nil, errors.Wrap(err, "listing enabled scheduler configs")
	}
	defer rows.Close()

	var out []model.SchedulerConfig
	for rows.Next() {
		var c model.SchedulerConfig
		var timeVal sql.NullString
		if err := rows.Scan(&c.CompanyName, &c.Enabled, &c.Interval, &c.Value, &timeVal, &c.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning scheduler config row")
		}
		c.Time = timeVal.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert writes a tenant's job definition, enabling/disabling or
// rescheduling it. The live Scheduler must be told separately (via
// Scheduler.Reschedule) to pick up the change.
func (s *ConfigStore) Upsert(ctx context.Context, c model.SchedulerConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO company_scheduler_config (company_name, enabled, interval, value, time, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (company_name) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			interval = EXCLUDED.interval,
			value = EXCLUDED.value,
			time = EXCLUDED.time,
			updated_at = now()
	`, c.CompanyName, c.Enabled, c.Interval, c.Value, nullableString(c.Time))
	if err != nil {
		return errors.Wrapf(err, "upserting scheduler config for %s", c.CompanyName)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
