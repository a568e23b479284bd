package domain

import (
	"context"
	"time"
)

// ContactSubmission is a message sent through the public contact form.
type ContactSubmission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContactRepository is the port for contact submission persistence.
type ContactRepository interface {
	CreateContactSubmission(ctx context.Context, c *ContactSubmission) error
	ListContactSubmissions(ctx context.Context) ([]ContactSubmission, error)
}
