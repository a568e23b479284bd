// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"quizfest/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu            sync.Mutex
	registrations []domain.Registration
	contacts      []domain.ContactSubmission
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{}
}

// Ensure interfaces are met.
var _ domain.RegistrationRepository = (*DB)(nil)
var _ domain.ContactRepository = (*DB)(nil)

// --- RegistrationRepository ---

// CreateRegistration stores r. Student id, email (when set) and registration
// number must be unique.
func (db *DB) CreateRegistration(ctx context.Context, r *domain.Registration) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.registrations {
		if existing.StudentID == r.StudentID ||
			existing.RegistrationNumber == r.RegistrationNumber ||
			(r.Email != "" && existing.Email == r.Email) {
			return domain.ErrDuplicate
		}
	}
	cp := *r
	cp.CreatedAt = cp.CreatedAt.UTC()
	db.registrations = append(db.registrations, cp)
	return nil
}

// ListRegistrations returns all registrations, newest first.
func (db *DB) ListRegistrations(ctx context.Context) ([]domain.Registration, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Registration, len(db.registrations))
	copy(out, db.registrations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetRegistrationByNumber looks up a registration by its number.
func (db *DB) GetRegistrationByNumber(ctx context.Context, number string) (*domain.Registration, error) {
	return db.find(func(r domain.Registration) bool { return r.RegistrationNumber == number }), nil
}

// GetRegistrationByStudentID looks up a registration by student id.
func (db *DB) GetRegistrationByStudentID(ctx context.Context, studentID string) (*domain.Registration, error) {
	return db.find(func(r domain.Registration) bool { return r.StudentID == studentID }), nil
}

// GetRegistrationByEmail looks up a registration by email.
func (db *DB) GetRegistrationByEmail(ctx context.Context, email string) (*domain.Registration, error) {
	if email == "" {
		return nil, nil
	}
	return db.find(func(r domain.Registration) bool { return r.Email == email }), nil
}

// CountRegistrationsByCategory returns the number of registrations per class category.
func (db *DB) CountRegistrationsByCategory(ctx context.Context) (map[string]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	counts := make(map[string]int)
	for _, r := range db.registrations {
		counts[r.ClassCategory]++
	}
	return counts, nil
}

func (db *DB) find(match func(domain.Registration) bool) *domain.Registration {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, r := range db.registrations {
		if match(r) {
			cp := r
			return &cp
		}
	}
	return nil
}

// --- ContactRepository ---

// CreateContactSubmission stores c.
func (db *DB) CreateContactSubmission(ctx context.Context, c *domain.ContactSubmission) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	cp := *c
	cp.CreatedAt = cp.CreatedAt.UTC()
	db.contacts = append(db.contacts, cp)
	return nil
}

// ListContactSubmissions returns all submissions, newest first.
func (db *DB) ListContactSubmissions(ctx context.Context) ([]domain.ContactSubmission, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.ContactSubmission, len(db.contacts))
	copy(out, db.contacts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
