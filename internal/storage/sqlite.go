package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "habitbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) InsertHabit(ctx context.Context, h Habit) (int64, error) {
	created := h.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO habits(owner_id, name, reminder_time, timezone, created_at, completed_count)
		 VALUES(?,?,?,?,?,?) RETURNING id`,
		h.OwnerID, h.Name, h.ReminderTime, h.Timezone, created.Format(time.RFC3339), h.CompletedCount,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *sqliteStore) Habit(ctx context.Context, id int64) (*Habit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, reminder_time, timezone, created_at, completed_count
		 FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *sqliteStore) HabitIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM habits ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) HabitsForOwner(ctx context.Context, ownerID int64) ([]Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, reminder_time, timezone, created_at, completed_count
		 FROM habits WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Habit
	for rows.Next() {
		h, err := scanHabit(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DistinctOwners(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM habits ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func (s *sqliteStore) UpdateHabitName(ctx context.Context, id int64, name string) error {
	return s.updateOne(ctx, `UPDATE habits SET name = ? WHERE id = ?`, name, id)
}

func (s *sqliteStore) UpdateHabitTime(ctx context.Context, id int64, reminderTime string) error {
	return s.updateOne(ctx, `UPDATE habits SET reminder_time = ? WHERE id = ?`, reminderTime, id)
}

func (s *sqliteStore) IncrementCompleted(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`UPDATE habits SET completed_count = completed_count + 1 WHERE id = ?
		 RETURNING completed_count`, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *sqliteStore) DeleteHabit(ctx context.Context, id int64) error {
	return s.updateOne(ctx, `DELETE FROM habits WHERE id = ?`, id)
}

func (s *sqliteStore) updateOne(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanHabit(scan func(dest ...any) error) (*Habit, error) {
	var (
		h       Habit
		created string
	)
	if err := scan(&h.ID, &h.OwnerID, &h.Name, &h.ReminderTime, &h.Timezone, &created, &h.CompletedCount); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("habit %d: bad created_at %q: %w", h.ID, created, err)
	}
	h.CreatedAt = t
	return &h, nil
}
