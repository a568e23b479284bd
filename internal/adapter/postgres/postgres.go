// Package postgres implements the registration and contact repositories on
// PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quizfest/internal/domain"

	"github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Ensure interfaces are met.
var _ domain.RegistrationRepository = (*DB)(nil)
var _ domain.ContactRepository = (*DB)(nil)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(ctx context.Context, connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS registrations (
			id TEXT PRIMARY KEY,
			registration_number TEXT NOT NULL,
			name_english TEXT NOT NULL,
			name_bangla TEXT NOT NULL,
			father_name TEXT NOT NULL,
			mother_name TEXT NOT NULL,
			student_id TEXT NOT NULL,
			class TEXT NOT NULL,
			section TEXT NOT NULL,
			blood_group TEXT NOT NULL,
			phone_whatsapp TEXT NOT NULL,
			email TEXT,
			present_address TEXT NOT NULL,
			permanent_address TEXT NOT NULL,
			class_category TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		"ALTER TABLE registrations ADD COLUMN IF NOT EXISTS registration_number TEXT;",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_number ON registrations(registration_number);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_student_id ON registrations(student_id);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_email ON registrations(email) WHERE email IS NOT NULL AND email <> '';",
		"CREATE INDEX IF NOT EXISTS idx_registrations_created_at ON registrations(created_at);",
		`CREATE TABLE IF NOT EXISTS contact_submissions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			subject TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		"CREATE INDEX IF NOT EXISTS idx_contact_submissions_created_at ON contact_submissions(created_at);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// mapError translates driver errors into domain errors.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pqErr.Constraint, domain.ErrDuplicate)
	}
	return err
}
