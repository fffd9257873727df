package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/daybox/internal/app"
	"github.com/hylla/daybox/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// dsnPragmas apply to every pooled connection.
const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Repository stores the task identity registry and the completion ledger.
type Repository struct {
	db *sqlx.DB
}

var _ app.Repository = (*Repository)(nil)

type identityRow struct {
	TaskUUID   string `db:"task_uuid"`
	ActivityID string `db:"activity_id"`
	TaskName   string `db:"task_name"`
	CreatedAt  string `db:"created_at"`
}

type ledgerRow struct {
	TaskUUID    string `db:"task_uuid"`
	LogicalDate string `db:"logical_date"`
	Done        bool   `db:"done"`
	UpdatedAt   string `db:"updated_at"`
}

// Open opens the database at path, creating parent directories and migrating the schema.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sqlx.Open(driverName, path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sqlx.Open(driverName, ":memory:"+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every new connection would get its own empty database.
	db.SetMaxOpenConns(1)
	return newRepository(db)
}

func newRepository(db *sqlx.DB) (*Repository, error) {
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS task_identities (
			task_uuid TEXT PRIMARY KEY,
			activity_id TEXT NOT NULL,
			task_name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(activity_id, task_name)
		);`,
		`CREATE TABLE IF NOT EXISTS task_ledger (
			task_uuid TEXT NOT NULL,
			logical_date TEXT NOT NULL,
			done INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			PRIMARY KEY(task_uuid, logical_date),
			FOREIGN KEY(task_uuid) REFERENCES task_identities(task_uuid) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_ledger_date ON task_ledger(logical_date);`,
		`CREATE INDEX IF NOT EXISTS idx_task_identities_name ON task_identities(task_name);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	legacy, err := r.hasTable(ctx, "task_entries")
	if err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	if !legacy {
		return nil
	}
	return r.bridgeLegacyEntries(ctx)
}

// hasTable reports whether the schema already holds a table called name.
func (r *Repository) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
	`, name); err != nil {
		return false, err
	}
	return n > 0, nil
}

// bridgeLegacyEntries registers every (activity, task) pair found in the name-keyed
// task_entries table written by earlier releases and
// copies its history into task_ledger. Legacy rows are keyed by activity name, which
// becomes the activity id.
func (r *Repository) bridgeLegacyEntries(ctx context.Context) error {
	// Keep migration idempotent and non-destructive so old databases remain readable.
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bridge legacy entries: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_identities(task_uuid, activity_id, task_name, created_at)
		SELECT
			lower(
				hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-4' || substr(hex(randomblob(2)), 2) || '-' ||
				substr('89ab', 1 + (abs(random()) % 4), 1) || substr(hex(randomblob(2)), 2) || '-' || hex(randomblob(6))
			),
			te.activity_name,
			te.task_name,
			COALESCE(strftime('%Y-%m-%dT%H:%M:%SZ', MIN(te.created_at)), '')
		FROM task_entries te
		WHERE trim(te.activity_name) <> '' AND trim(te.task_name) <> ''
			AND NOT EXISTS (
				SELECT 1
				FROM task_identities ti
				WHERE ti.activity_id = te.activity_name AND ti.task_name = te.task_name
			)
		GROUP BY te.activity_name, te.task_name
	`); err != nil {
		return fmt.Errorf("bridge legacy task identities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_ledger(task_uuid, logical_date, done, updated_at)
		SELECT
			ti.task_uuid,
			te.date,
			MAX(CASE WHEN te.done_state THEN 1 ELSE 0 END),
			COALESCE(strftime('%Y-%m-%dT%H:%M:%SZ', MAX(te.updated_at)), '')
		FROM task_entries te
		JOIN task_identities ti ON ti.activity_id = te.activity_name AND ti.task_name = te.task_name
		WHERE NOT EXISTS (
			SELECT 1
			FROM task_ledger tl
			WHERE tl.task_uuid = ti.task_uuid AND tl.logical_date = te.date
		)
		GROUP BY ti.task_uuid, te.date
	`); err != nil {
		return fmt.Errorf("bridge legacy task entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bridge legacy entries commit: %w", err)
	}
	return nil
}

// GetTaskIdentity returns the registry row for (activityID, taskName).
func (r *Repository) GetTaskIdentity(ctx context.Context, activityID, taskName string) (domain.TaskIdentity, error) {
	var row identityRow
	err := r.db.GetContext(ctx, &row, `
		SELECT task_uuid, activity_id, task_name, created_at
		FROM task_identities
		WHERE activity_id = ? AND task_name = ?
	`, activityID, taskName)
	if err != nil {
		return domain.TaskIdentity{}, translateErrNoRows(err)
	}
	return row.toDomain(), nil
}

// GetTaskIdentityByUUID returns the registry row for one uuid.
func (r *Repository) GetTaskIdentityByUUID(ctx context.Context, taskUUID string) (domain.TaskIdentity, error) {
	var row identityRow
	err := r.db.GetContext(ctx, &row, `
		SELECT task_uuid, activity_id, task_name, created_at
		FROM task_identities
		WHERE task_uuid = ?
	`, taskUUID)
	if err != nil {
		return domain.TaskIdentity{}, translateErrNoRows(err)
	}
	return row.toDomain(), nil
}

// CreateTaskIdentity inserts one registry row.
func (r *Repository) CreateTaskIdentity(ctx context.Context, identity domain.TaskIdentity) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO task_identities(task_uuid, activity_id, task_name, created_at)
		VALUES (:task_uuid, :activity_id, :task_name, :created_at)
	`, identityRow{
		TaskUUID:   identity.TaskUUID,
		ActivityID: identity.ActivityID,
		TaskName:   identity.TaskName,
		CreatedAt:  ts(identity.CreatedAt),
	})
	return err
}

// RenameTaskIdentity re-keys one registry row; its ledger history follows the uuid.
func (r *Repository) RenameTaskIdentity(ctx context.Context, taskUUID, activityID, taskName string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_identities
		SET activity_id = ?, task_name = ?
		WHERE task_uuid = ?
	`, activityID, taskName, taskUUID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListTaskIdentities lists every registry row ordered by task name.
func (r *Repository) ListTaskIdentities(ctx context.Context) ([]domain.TaskIdentity, error) {
	rows := []identityRow{}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT task_uuid, activity_id, task_name, created_at
		FROM task_identities
		ORDER BY task_name ASC, activity_id ASC
	`); err != nil {
		return nil, err
	}
	out := make([]domain.TaskIdentity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// InsertLedgerEntries creates missing rows inside one transaction.
func (r *Repository) InsertLedgerEntries(ctx context.Context, entries []domain.LedgerEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO task_ledger(task_uuid, logical_date, done, updated_at)
		VALUES (:task_uuid, :logical_date, :done, :updated_at)
		ON CONFLICT(task_uuid, logical_date) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	created := 0
	for _, entry := range entries {
		res, err := stmt.ExecContext(ctx, ledgerRow{
			TaskUUID:    entry.TaskUUID,
			LogicalDate: entry.Date.String(),
			Done:        entry.Done,
			UpdatedAt:   ts(entry.UpdatedAt),
		})
		if err != nil {
			return 0, fmt.Errorf("insert ledger entry %s@%s: %w", entry.TaskUUID, entry.Date, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// UpdateLedgerEntry sets the done flag of an existing row.
func (r *Repository) UpdateLedgerEntry(ctx context.Context, taskUUID string, date domain.Date, done bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_ledger
		SET done = ?, updated_at = ?
		WHERE task_uuid = ? AND logical_date = ?
	`, done, ts(at), taskUUID, date.String())
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListLedgerEntriesByDate lists rows of one logical date.
func (r *Repository) ListLedgerEntriesByDate(ctx context.Context, date domain.Date) ([]domain.LedgerEntry, error) {
	rows := []ledgerRow{}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT task_uuid, logical_date, done, updated_at
		FROM task_ledger
		WHERE logical_date = ?
		ORDER BY task_uuid ASC
	`, date.String()); err != nil {
		return nil, err
	}
	return ledgerRowsToDomain(rows)
}

// ListLedgerEntriesForTask lists rows of one task dated on or before through, oldest first.
func (r *Repository) ListLedgerEntriesForTask(ctx context.Context, taskUUID string, through domain.Date) ([]domain.LedgerEntry, error) {
	rows := []ledgerRow{}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT task_uuid, logical_date, done, updated_at
		FROM task_ledger
		WHERE task_uuid = ? AND logical_date <= ?
		ORDER BY logical_date ASC
	`, taskUUID, through.String()); err != nil {
		return nil, err
	}
	return ledgerRowsToDomain(rows)
}

func (row identityRow) toDomain() domain.TaskIdentity {
	return domain.TaskIdentity{
		TaskUUID:   row.TaskUUID,
		ActivityID: row.ActivityID,
		TaskName:   row.TaskName,
		CreatedAt:  parseTS(row.CreatedAt),
	}
}

func ledgerRowsToDomain(rows []ledgerRow) ([]domain.LedgerEntry, error) {
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		date, err := domain.ParseDate(row.LogicalDate)
		if err != nil {
			return nil, fmt.Errorf("decode ledger date %q: %w", row.LogicalDate, err)
		}
		out = append(out, domain.LedgerEntry{
			TaskUUID:  row.TaskUUID,
			Date:      date,
			Done:      row.Done,
			UpdatedAt: parseTS(row.UpdatedAt),
		})
	}
	return out, nil
}

// translateErrNoRows maps sql.ErrNoRows to app.ErrNotFound.
func translateErrNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return app.ErrNotFound
	}
	return err
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
