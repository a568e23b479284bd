package postgres

import (
	"context"
	"database/sql"
	"errors"

	"quizfest/internal/domain"
)

const registrationColumns = `id, registration_number, name_english, name_bangla, father_name, mother_name,
	student_id, class, section, blood_group, phone_whatsapp, email, present_address,
	permanent_address, class_category, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s scanner) (*domain.Registration, error) {
	var (
		r     domain.Registration
		email sql.NullString
	)
	err := s.Scan(&r.ID, &r.RegistrationNumber, &r.NameEnglish, &r.NameBangla, &r.FatherName, &r.MotherName,
		&r.StudentID, &r.Class, &r.Section, &r.BloodGroup, &r.PhoneWhatsapp, &email, &r.PresentAddress,
		&r.PermanentAddress, &r.ClassCategory, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Email = email.String
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// CreateRegistration inserts r.
func (d *DB) CreateRegistration(ctx context.Context, r *domain.Registration) error {
	email := sql.NullString{String: r.Email, Valid: r.Email != ""}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO registrations(`+registrationColumns+`)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);`,
		r.ID, r.RegistrationNumber, r.NameEnglish, r.NameBangla, r.FatherName, r.MotherName,
		r.StudentID, r.Class, r.Section, r.BloodGroup, r.PhoneWhatsapp, email, r.PresentAddress,
		r.PermanentAddress, r.ClassCategory, r.CreatedAt.UTC(),
	)
	return mapError(err)
}

// ListRegistrations returns all registrations, newest first.
func (d *DB) ListRegistrations(ctx context.Context) ([]domain.Registration, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+registrationColumns+" FROM registrations ORDER BY created_at DESC;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRegistrationByNumber looks up a registration by its number.
func (d *DB) GetRegistrationByNumber(ctx context.Context, number string) (*domain.Registration, error) {
	return d.getOne(ctx, "registration_number", number)
}

// GetRegistrationByStudentID looks up a registration by student id.
func (d *DB) GetRegistrationByStudentID(ctx context.Context, studentID string) (*domain.Registration, error) {
	return d.getOne(ctx, "student_id", studentID)
}

// GetRegistrationByEmail looks up a registration by email.
func (d *DB) GetRegistrationByEmail(ctx context.Context, email string) (*domain.Registration, error) {
	if email == "" {
		return nil, nil
	}
	return d.getOne(ctx, "email", email)
}

// getOne is only called with the column names above.
func (d *DB) getOne(ctx context.Context, column, value string) (*domain.Registration, error) {
	row := d.sql.QueryRowContext(ctx,
		"SELECT "+registrationColumns+" FROM registrations WHERE "+column+" = $1 LIMIT 1;", value)
	r, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// CountRegistrationsByCategory returns the number of registrations per class category.
func (d *DB) CountRegistrationsByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT class_category, COUNT(1) FROM registrations GROUP BY class_category;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}
