// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

const (
	DriverSqlite   = "sqlite3"
	DriverPostgres = "postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Persistence struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
	l      *logrus.Logger
}

type ConfigFunc func(p *Persistence)

// WithClock replaces time.Now for timestamps and lease expiry, used by tests.
func WithClock(now func() time.Time) ConfigFunc {
	return func(p *Persistence) {
		p.now = now
	}
}

func NewPersistence(driver, datasource string, configFuncs ...ConfigFunc) (*Persistence, error) {
	db, err := sqlx.Connect(driver, datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithFields(logrus.Fields{"driver": driver}).Info("Connected")

	if driver == DriverSqlite {
		db.SetMaxOpenConns(1)

		_, err = db.Exec(`PRAGMA journal_mode=WAL`)
		if err != nil {
			return nil, fmt.Errorf("could not set journal mode: %w", err)
		}
		_, err = db.Exec(`PRAGMA synchronous=normal`)
		if err != nil {
			return nil, fmt.Errorf("could not set synchronous mode: %w", err)
		}
		_, err = db.Exec(`PRAGMA foreign_keys=ON`)
		if err != nil {
			return nil, fmt.Errorf("could not enable foreign keys: %w", err)
		}
	}

	p := &Persistence{
		db:     db,
		driver: driver,
		now:    time.Now,
		l:      l,
	}
	for _, configFunc := range configFuncs {
		configFunc(p)
	}

	return p, nil
}

// Migrate applies all pending migrations and returns how many were applied.
func (p *Persistence) Migrate(ctx context.Context) (int, error) {
	migrationSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}

	appliedMigrations, err := migrate.ExecContext(ctx, p.db.DB, p.driver, migrationSource, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	p.l.WithField("migrations", appliedMigrations).Debug("Executed migrations")
	return appliedMigrations, nil
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Info("Disconnected")
	return nil
}

type dbState struct {
	UserId              string       `db:"user_id"`
	Status              string       `db:"status"`
	ConsecutiveFailures int          `db:"consecutive_failures"`
	LastCheckedAt       sql.NullTime `db:"last_checked_at"`
	LastError           string       `db:"last_error"`
}

type dbCursor struct {
	UserId      string `db:"user_id"`
	Folder      string `db:"folder"`
	UidValidity uint32 `db:"uid_validity"`
	LastUid     uint32 `db:"last_uid"`
}

func (s *dbState) toDomain() *domain.MonitoringState {
	state := &domain.MonitoringState{
		UserId:              s.UserId,
		Status:              domain.Status(s.Status),
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastError:           s.LastError,
		Cursors:             map[string]domain.Cursor{},
	}
	if s.LastCheckedAt.Valid {
		state.LastCheckedAt = s.LastCheckedAt.Time.UTC()
	}
	return state
}

func (p *Persistence) GetState(ctx context.Context, userId string) (*domain.MonitoringState, error) {
	dbState := dbState{}
	err := p.db.GetContext(
		ctx,
		&dbState,
		p.db.Rebind(`SELECT user_id, status, consecutive_failures, last_checked_at, last_error FROM monitoring_states WHERE user_id = ?`),
		userId,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userId, domain.ErrStateNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	dbCursors := []dbCursor{}
	err = p.db.SelectContext(
		ctx,
		&dbCursors,
		p.db.Rebind(`SELECT user_id, folder, uid_validity, last_uid FROM monitoring_cursors WHERE user_id = ?`),
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	state := dbState.toDomain()
	for _, c := range dbCursors {
		state.Cursors[c.Folder] = domain.Cursor{Folder: c.Folder, UidValidity: c.UidValidity, LastUid: c.LastUid}
	}

	return state, nil
}

func (p *Persistence) AllStates(ctx context.Context) ([]*domain.MonitoringState, error) {
	dbStates := []dbState{}
	err := p.db.SelectContext(
		ctx,
		&dbStates,
		`SELECT user_id, status, consecutive_failures, last_checked_at, last_error FROM monitoring_states ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	dbCursors := []dbCursor{}
	err = p.db.SelectContext(ctx, &dbCursors, `SELECT user_id, folder, uid_validity, last_uid FROM monitoring_cursors`)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	states := []*domain.MonitoringState{}
	byUser := map[string]*domain.MonitoringState{}
	for i := range dbStates {
		state := dbStates[i].toDomain()
		states = append(states, state)
		byUser[state.UserId] = state
	}
	for _, c := range dbCursors {
		if state, ok := byUser[c.UserId]; ok {
			state.Cursors[c.Folder] = domain.Cursor{Folder: c.Folder, UidValidity: c.UidValidity, LastUid: c.LastUid}
		}
	}

	p.l.WithField("count", len(states)).Debug("Loaded monitoring states")
	return states, nil
}

func (p *Persistence) CreateState(ctx context.Context, userId string) (*domain.MonitoringState, error) {
	_, err := p.db.ExecContext(
		ctx,
		p.db.Rebind(`INSERT INTO monitoring_states (user_id, status, consecutive_failures, last_error, updated_at)
			VALUES (?, ?, 0, '', ?)
			ON CONFLICT (user_id) DO UPDATE SET status = excluded.status, consecutive_failures = 0, last_error = '', updated_at = excluded.updated_at`),
		userId, string(domain.StatusIdle), p.now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create state: %w", err)
	}

	p.l.WithField("user", userId).Info("Activated monitoring")
	return p.GetState(ctx, userId)
}

func (p *Persistence) SaveState(ctx context.Context, state *domain.MonitoringState) error {
	lastChecked := sql.NullTime{}
	if !state.LastCheckedAt.IsZero() {
		lastChecked = sql.NullTime{Time: state.LastCheckedAt.UTC(), Valid: true}
	}

	result, err := p.db.ExecContext(
		ctx,
		p.db.Rebind(`UPDATE monitoring_states SET status = ?, consecutive_failures = ?, last_checked_at = ?, last_error = ?, updated_at = ? WHERE user_id = ?`),
		string(state.Status), state.ConsecutiveFailures, lastChecked, state.LastError, p.now().UTC(), state.UserId,
	)
	if err != nil {
		return fmt.Errorf("could not save state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get num of affected rows: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("user %s: %w", state.UserId, domain.ErrStateNotFound)
	}

	return nil
}

// SaveCursor stores the cursor unless it would move the stored one backwards within the same
// UIDVALIDITY.
func (p *Persistence) SaveCursor(ctx context.Context, userId string, cursor domain.Cursor) error {
	_, err := p.db.ExecContext(
		ctx,
		p.db.Rebind(`INSERT INTO monitoring_cursors (user_id, folder, uid_validity, last_uid) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, folder) DO UPDATE SET uid_validity = excluded.uid_validity, last_uid = excluded.last_uid
			WHERE monitoring_cursors.uid_validity <> excluded.uid_validity OR monitoring_cursors.last_uid < excluded.last_uid`),
		userId, cursor.Folder, int64(cursor.UidValidity), int64(cursor.LastUid),
	)
	if err != nil {
		return fmt.Errorf("could not save cursor: %w", err)
	}

	p.l.WithFields(logrus.Fields{"user": userId, "folder": cursor.Folder, "uidvalidity": cursor.UidValidity, "lastuid": cursor.LastUid}).Debug("Persisted cursor")
	return nil
}

func (p *Persistence) DeleteState(ctx context.Context, userId string) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}

	for _, qry := range []string{
		`DELETE FROM monitoring_cursors WHERE user_id = ?`,
		`DELETE FROM monitoring_states WHERE user_id = ?`,
	} {
		_, err = tx.ExecContext(ctx, tx.Rebind(qry), userId)
		if err != nil {
			return txEnd(tx, fmt.Errorf("could not delete state: %w", err))
		}
	}

	err = txEnd(tx, nil)
	if err != nil {
		return err
	}

	p.l.WithField("user", userId).Info("Removed monitoring state")
	return nil
}

func txEnd(tx *sqlx.Tx, err error) error {
	if err == nil {
		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("could not commit tx: %w", err)
		}
	} else {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			errStr := err.Error()
			return fmt.Errorf("%s, could not rollback tx: %w", errStr, rollbackErr)
		} else {
			return err
		}
	}

	return nil
}
