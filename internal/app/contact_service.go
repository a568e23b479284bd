package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"quizfest/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxMessageLen = 5000

// ContactInput is the public contact form.
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ContactService stores contact form submissions.
type ContactService struct {
	repo  domain.ContactRepository
	audit *Auditor
	now   func() time.Time
}

// NewContactService creates a new contact service.
func NewContactService(repo domain.ContactRepository, audit *Auditor) *ContactService {
	return &ContactService{repo: repo, audit: audit, now: time.Now}
}

// Submit validates and stores a submission.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*domain.ContactSubmission, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	fe := fieldErrors{}
	for _, f := range []struct {
		field, value string
		max          int
	}{
		{"name", in.Name, maxFieldLen},
		{"email", in.Email, maxFieldLen},
		{"subject", in.Subject, maxFieldLen},
		{"message", in.Message, maxMessageLen},
	} {
		if f.value == "" {
			fe.add(f.field, "is required")
		} else if utf8.RuneCountInString(f.value) > f.max {
			fe.add(f.field, fmt.Sprintf("must be at most %d characters", f.max))
		}
	}
	if in.Email != "" && !validEmail(in.Email) {
		fe.add("email", "must be a valid email address")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	c := &domain.ContactSubmission{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Subject:   in.Subject,
		Message:   in.Message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateContactSubmission(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all submissions, newest first.
func (s *ContactService) List(ctx context.Context, actor Actor) ([]domain.ContactSubmission, error) {
	subs, err := s.repo.ListContactSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, ActionContactList, OutcomeSuccess, zap.Int("count", len(subs)))
	return subs, nil
}
