package postgres

import (
	"context"

	"quizfest/internal/domain"
)

// CreateContactSubmission inserts c.
func (d *DB) CreateContactSubmission(ctx context.Context, c *domain.ContactSubmission) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO contact_submissions(id, name, email, subject, message, created_at) VALUES($1, $2, $3, $4, $5, $6);",
		c.ID, c.Name, c.Email, c.Subject, c.Message, c.CreatedAt.UTC(),
	)
	return mapError(err)
}

// ListContactSubmissions returns all submissions, newest first.
func (d *DB) ListContactSubmissions(ctx context.Context) ([]domain.ContactSubmission, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, name, email, subject, message, created_at FROM contact_submissions ORDER BY created_at DESC;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContactSubmission
	for rows.Next() {
		var c domain.ContactSubmission
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
