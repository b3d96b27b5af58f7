package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/flashblaze/drinky-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct {
	db  *sql.DB
	now func() time.Time
}

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db, now: time.Now}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks database connectivity.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- Users ---

const userColumns = `chat_id, username, first_name, last_name, language_code,
	goal_ml, reminder_enabled, reminder_interval_min, reminder_tz,
	created_at, updated_at`

// CreateUser inserts a new user row. Existing rows are left as they are.
func (r *SQLiteRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}

	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO NOTHING`,
		u.ChatID, u.Username, u.FirstName, u.LastName, u.LanguageCode,
		u.GoalML, boolToInt(u.ReminderEnabled), u.ReminderIntervalMin, u.ReminderTZ,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return err
}

// GetUser returns a user by chatID or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)

	var (
		u          domain.User
		enabledInt int
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(
		&u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode,
		&u.GoalML, &enabledInt, &u.ReminderIntervalMin, &u.ReminderTZ,
		&createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.ReminderEnabled = enabledInt != 0
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

// UpdateGoal sets the daily goal for a user.
func (r *SQLiteRepo) UpdateGoal(ctx context.Context, chatID int64, goalML int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET goal_ml = ?, updated_at = ?
		WHERE chat_id = ?`,
		goalML, toMillis(r.now()), chatID,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// UpdateReminderSettings applies the non-nil fields of upd and returns the updated user.
func (r *SQLiteRepo) UpdateReminderSettings(ctx context.Context, chatID int64, upd domain.ReminderSettingsUpdate) (*domain.User, error) {
	var enabled sql.NullInt64
	if upd.Enabled != nil {
		enabled = sql.NullInt64{Int64: int64(boolToInt(*upd.Enabled)), Valid: true}
	}
	var interval sql.NullInt64
	if upd.IntervalMin != nil {
		interval = sql.NullInt64{Int64: int64(*upd.IntervalMin), Valid: true}
	}
	var tz sql.NullString
	if upd.TZ != nil {
		tz = sql.NullString{String: *upd.TZ, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET reminder_enabled      = COALESCE(?, reminder_enabled),
		    reminder_interval_min = COALESCE(?, reminder_interval_min),
		    reminder_tz           = COALESCE(?, reminder_tz),
		    updated_at            = ?
		WHERE chat_id = ?`,
		enabled, interval, tz, toMillis(r.now()), chatID,
	)
	if err != nil {
		return nil, err
	}
	if err := expectRow(res); err != nil {
		return nil, err
	}
	return r.GetUser(ctx, chatID)
}

// DeleteUser removes the user together with its intake logs and wake timer.
func (r *SQLiteRepo) DeleteUser(ctx context.Context, chatID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM wake_timers WHERE chat_id = ?`,
		`DELETE FROM intake_logs WHERE chat_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, chatID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE chat_id = ?`, chatID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := expectRow(res); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- Intake logs ---

// InsertIntake appends an intake row for the user.
func (r *SQLiteRepo) InsertIntake(ctx context.Context, chatID int64, amountML int, at time.Time) (*domain.IntakeLog, error) {
	if amountML <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amountML)
	}
	l := &domain.IntakeLog{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		AmountML:  amountML,
		CreatedAt: at.UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO intake_logs (id, chat_id, amount_ml, created_at)
		VALUES (?, ?, ?, ?)`,
		l.ID, l.ChatID, l.AmountML, toMillis(l.CreatedAt),
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// SumIntake returns the total amount logged in [from, to).
func (r *SQLiteRepo) SumIntake(ctx context.Context, chatID int64, from, to time.Time) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_ml), 0)
		FROM intake_logs
		WHERE chat_id = ?
		  AND created_at >= ?
		  AND created_at < ?`,
		chatID, toMillis(from), toMillis(to),
	).Scan(&total)
	return total, err
}

// MostRecentIntakeAt returns the instant of the latest intake row, or nil if none exist.
func (r *SQLiteRepo) MostRecentIntakeAt(ctx context.Context, chatID int64) (*time.Time, error) {
	var ns sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(created_at)
		FROM intake_logs
		WHERE chat_id = ?`,
		chatID,
	).Scan(&ns)
	if err != nil {
		return nil, err
	}
	return fromNullMillis(ns), nil
}

// --- Wake timers ---

// SetWakeTimer replaces the user's pending wake timer.
func (r *SQLiteRepo) SetWakeTimer(ctx context.Context, chatID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wake_timers (chat_id, fire_at) VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET fire_at = excluded.fire_at`,
		chatID, toMillis(at),
	)
	return err
}

// GetWakeTimer returns the pending wake timer, or nil when none is set.
func (r *SQLiteRepo) GetWakeTimer(ctx context.Context, chatID int64) (*time.Time, error) {
	var ms int64
	err := r.db.QueryRowContext(ctx, `SELECT fire_at FROM wake_timers WHERE chat_id = ?`, chatID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := fromMillis(ms)
	return &t, nil
}

// ClearWakeTimer removes the pending wake timer. Clearing an absent timer is not an error.
func (r *SQLiteRepo) ClearWakeTimer(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM wake_timers WHERE chat_id = ?`, chatID)
	return err
}

// ListDueWakeTimers returns up to `limit` timers whose fire_at is <= now,
// ordered by fire_at ascending.
func (r *SQLiteRepo) ListDueWakeTimers(ctx context.Context, now time.Time, limit int) ([]DueTimer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, fire_at
		FROM wake_timers
		WHERE fire_at <= ?
		ORDER BY fire_at ASC
		LIMIT ?`,
		toMillis(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []DueTimer
	for rows.Next() {
		var (
			d  DueTimer
			ms int64
		)
		if err := rows.Scan(&d.ChatID, &ms); err != nil {
			return nil, err
		}
		d.FireAt = fromMillis(ms)
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
