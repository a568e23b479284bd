package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"quizfest/internal/domain"

	"github.com/lib/pq"
)

func TestMapError(t *testing.T) {
	dup := &pq.Error{Code: uniqueViolation, Constraint: "idx_registrations_student_id"}
	if err := mapError(dup); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	other := &pq.Error{Code: "42P01"}
	if err := mapError(other); errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("unexpected ErrDuplicate for %v", err)
	}
	if mapError(nil) != nil {
		t.Error("expected nil to stay nil")
	}
}

// TestRepositories runs against a real database when TEST_DATABASE_URL is set.
func TestRepositories(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if _, err := db.sql.ExecContext(ctx, "TRUNCATE registrations, contact_submissions;"); err != nil {
		t.Fatal(err)
	}

	r := &domain.Registration{
		ID: "r1", RegistrationNumber: "QF-00001", NameEnglish: "A", NameBangla: "B", FatherName: "C",
		MotherName: "D", StudentID: "S1", Class: "7", Section: "A", BloodGroup: "O+",
		PhoneWhatsapp: "01711988862", PresentAddress: "x", PermanentAddress: "y",
		ClassCategory: "06-08", CreatedAt: time.Now(),
	}
	if err := db.CreateRegistration(ctx, r); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
	dup := *r
	dup.ID, dup.RegistrationNumber = "r2", "QF-00002"
	if err := db.CreateRegistration(ctx, &dup); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for student id, got %v", err)
	}

	got, err := db.GetRegistrationByNumber(ctx, "QF-00001")
	if err != nil || got == nil || got.Email != "" {
		t.Errorf("GetRegistrationByNumber: %+v, %v", got, err)
	}
	counts, err := db.CountRegistrationsByCategory(ctx)
	if err != nil || counts["06-08"] != 1 {
		t.Errorf("CountRegistrationsByCategory: %v, %v", counts, err)
	}
}
