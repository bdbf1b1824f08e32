package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkledger/backend/services/parking-service/internal/models"
)

// ErrSessionNotFound is returned when no row matches, or the row is already closed.
var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, license_plate, entry_time, exit_time, amount_due`

// SessionRepository persists parking sessions in the vehicles table.
type SessionRepository struct {
	db      *sql.DB
	dialect dialect
	loc     *time.Location
}

// NewSessionRepository returns a repository for the given driver name. Timestamps
// are written as wall-clock text in loc (time.Local when nil).
func NewSessionRepository(db *sql.DB, driver string, loc *time.Location) *SessionRepository {
	if loc == nil {
		loc = time.Local
	}
	return &SessionRepository{db: db, dialect: dialectFor(driver), loc: loc}
}

// Migrate creates the vehicles table and the open-session index when missing.
func (r *SessionRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.createSQL); err != nil {
		return fmt.Errorf("repository: create vehicles: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createOpenIndexSQL); err != nil {
		return fmt.Errorf("repository: create open index: %w", err)
	}
	return nil
}

// InsertOpen stores a new open session and returns it with its assigned id.
func (r *SessionRepository) InsertOpen(ctx context.Context, plate string, entryTime time.Time) (*models.ParkingSession, error) {
	entryTime = entryTime.In(r.loc).Truncate(time.Microsecond)
	query := r.dialect.rebind(`
		INSERT INTO vehicles (license_plate, entry_time)
		VALUES (?, ?)
		RETURNING id
	`)

	session := &models.ParkingSession{
		LicensePlate: plate,
		EntryTime:    entryTime,
	}
	if err := r.db.QueryRowContext(ctx, query, plate, formatStoredTime(entryTime, r.loc)).Scan(&session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

// FindOpenByPlate returns the earliest open session for plate (FIFO), ties broken by id.
func (r *SessionRepository) FindOpenByPlate(ctx context.Context, plate string) (*models.ParkingSession, error) {
	query := r.dialect.rebind(`
		SELECT ` + sessionColumns + `
		FROM vehicles
		WHERE license_plate = ? AND exit_time IS NULL
		ORDER BY entry_time ASC, id ASC
		LIMIT 1
	`)
	session, err := r.scanOne(r.db.QueryRowContext(ctx, query, plate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

// GetByID returns a session regardless of its state.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*models.ParkingSession, error) {
	query := r.dialect.rebind(`SELECT ` + sessionColumns + ` FROM vehicles WHERE id = ?`)
	session, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

// Close sets exit time and amount on a still-open row. Closing a row twice yields
// ErrSessionNotFound and leaves the first close intact.
func (r *SessionRepository) Close(ctx context.Context, id int64, exitTime time.Time, amountDue int64) error {
	query := r.dialect.rebind(`
		UPDATE vehicles
		SET exit_time = ?,
		    amount_due = ?
		WHERE id = ? AND exit_time IS NULL
	`)
	result, err := r.db.ExecContext(ctx, query, formatStoredTime(exitTime, r.loc), amountDue, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListOpen returns every open session, oldest first.
func (r *SessionRepository) ListOpen(ctx context.Context) ([]models.ParkingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM vehicles
		WHERE exit_time IS NULL
		ORDER BY entry_time ASC, id ASC
	`
	return r.query(ctx, query)
}

// ListRecent returns the last N sessions, newest first.
func (r *SessionRepository) ListRecent(ctx context.Context, limit int) ([]models.ParkingSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.dialect.rebind(`
		SELECT ` + sessionColumns + `
		FROM vehicles
		ORDER BY id DESC
		LIMIT ?
	`)
	return r.query(ctx, query, limit)
}

func (r *SessionRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.ParkingSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.ParkingSession{}
	for rows.Next() {
		s, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *SessionRepository) scanOne(row scanner) (*models.ParkingSession, error) {
	var (
		s         models.ParkingSession
		plate     sql.NullString
		entryRaw  sql.NullString
		exitRaw   sql.NullString
		amountDue sql.NullInt64
	)
	if err := row.Scan(&s.ID, &plate, &entryRaw, &exitRaw, &amountDue); err != nil {
		return nil, err
	}

	s.LicensePlate = plate.String
	if entryRaw.Valid {
		entry, err := parseStoredTime(entryRaw.String, r.loc)
		if err != nil {
			return nil, err
		}
		s.EntryTime = entry
	}
	exit, err := parseNullableTime(exitRaw, r.loc)
	if err != nil {
		return nil, err
	}
	s.ExitTime = exit
	if amountDue.Valid {
		amount := amountDue.Int64
		s.AmountDue = &amount
	}
	return &s, nil
}
