package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"quizfest/internal/domain"
	"quizfest/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	registrationPrefix      = "QF-"
	registrationNumberLen   = 5
	registrationMaxAttempts = 100

	maxFieldLen   = 200
	maxAddressLen = 500
	minSearchLen  = 2
)

var bloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// RegistrationInput is the public registration form.
type RegistrationInput struct {
	NameEnglish      string `json:"nameEnglish"`
	NameBangla       string `json:"nameBangla"`
	FatherName       string `json:"fatherName"`
	MotherName       string `json:"motherName"`
	StudentID        string `json:"studentId"`
	Class            string `json:"class"`
	Section          string `json:"section"`
	BloodGroup       string `json:"bloodGroup"`
	PhoneWhatsapp    string `json:"phoneWhatsapp"`
	Email            string `json:"email"`
	PresentAddress   string `json:"presentAddress"`
	PermanentAddress string `json:"permanentAddress"`
	ClassCategory    string `json:"classCategory"`
}

// Stats is the public registration summary.
type Stats struct {
	Total      int            `json:"total"`
	Categories map[string]int `json:"categories"`
}

// RegistrationService handles public registration and admin lookups.
type RegistrationService struct {
	repo      domain.RegistrationRepository
	notifiers []Notifier
	audit     *Auditor
	allowBulk bool
	now       func() time.Time

	// notified is called after all notifiers of a registration have returned.
	notified func()
}

// NewRegistrationService creates a new registration service.
func NewRegistrationService(repo domain.RegistrationRepository, audit *Auditor, allowBulk bool, notifiers ...Notifier) *RegistrationService {
	return &RegistrationService{
		repo:      repo,
		notifiers: notifiers,
		audit:     audit,
		allowBulk: allowBulk,
		now:       time.Now,
	}
}

// BulkListingAllowed reports whether List is enabled.
func (s *RegistrationService) BulkListingAllowed() bool { return s.allowBulk }

// Register validates and stores a registration, then fires the notifiers.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (*domain.Registration, error) {
	in = normalizeRegistration(in)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetRegistrationByStudentID(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("student id already registered: %w", ErrDuplicate)
	}
	if in.Email != "" {
		existing, err = s.repo.GetRegistrationByEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("email already registered: %w", ErrDuplicate)
		}
	}

	number, err := s.nextRegistrationNumber(ctx)
	if err != nil {
		return nil, err
	}

	r := &domain.Registration{
		ID:                 uuid.NewString(),
		RegistrationNumber: number,
		NameEnglish:        in.NameEnglish,
		NameBangla:         in.NameBangla,
		FatherName:         in.FatherName,
		MotherName:         in.MotherName,
		StudentID:          in.StudentID,
		Class:              in.Class,
		Section:            in.Section,
		BloodGroup:         in.BloodGroup,
		PhoneWhatsapp:      in.PhoneWhatsapp,
		Email:              in.Email,
		PresentAddress:     in.PresentAddress,
		PermanentAddress:   in.PermanentAddress,
		ClassCategory:      in.ClassCategory,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.repo.CreateRegistration(ctx, r); err != nil {
		return nil, err
	}
	metrics.Registrations.Inc()

	dispatch(ctx, s.notifiers, *r, s.notified)
	return r, nil
}

// nextRegistrationNumber derives QF-XXXXX from the current millisecond clock
// in base36, stepping forward until an unused number is found.
func (s *RegistrationService) nextRegistrationNumber(ctx context.Context) (string, error) {
	base := s.now().UnixMilli()
	for attempt := int64(0); attempt < registrationMaxAttempts; attempt++ {
		number := FormatRegistrationNumber(base + attempt)
		existing, err := s.repo.GetRegistrationByNumber(ctx, number)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return number, nil
		}
	}
	return "", errors.New("could not allocate a registration number")
}

// FormatRegistrationNumber renders n as QF- followed by the last five base36
// digits in upper case.
func FormatRegistrationNumber(n int64) string {
	code := strings.ToUpper(strconv.FormatInt(n, 36))
	if len(code) < registrationNumberLen {
		code = strings.Repeat("0", registrationNumberLen-len(code)) + code
	}
	return registrationPrefix + code[len(code)-registrationNumberLen:]
}

// Search finds one registration by registration number or student id and
// returns its redacted view. The term is reduced to letters, digits and
// hyphens before use.
func (s *RegistrationService) Search(ctx context.Context, actor Actor, term string) (*domain.RedactedRegistration, error) {
	clean := SanitizeSearchTerm(term)
	if len(clean) < minSearchLen {
		return nil, &ValidationError{Fields: map[string]string{
			"term": "must contain at least 2 letters, digits or hyphens",
		}}
	}

	r, err := s.repo.GetRegistrationByNumber(ctx, strings.ToUpper(clean))
	if err != nil {
		return nil, err
	}
	if r == nil {
		r, err = s.repo.GetRegistrationByStudentID(ctx, clean)
		if err != nil {
			return nil, err
		}
	}
	if r == nil {
		s.audit.Record(ctx, actor, ActionSearch, OutcomeSuccess, zap.Bool("found", false))
		return nil, ErrNotFound
	}

	s.audit.Record(ctx, actor, ActionSearch, OutcomeSuccess,
		zap.Bool("found", true), zap.String("registration_number", r.RegistrationNumber))
	red := domain.Redact(*r)
	return &red, nil
}

// SanitizeSearchTerm keeps ASCII letters, digits and hyphens.
func SanitizeSearchTerm(term string) string {
	var b strings.Builder
	for _, c := range term {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteRune(c)
		}
	}
	return b.String()
}

// List returns every registration in full detail. It is refused unless bulk
// listing was enabled at startup.
func (s *RegistrationService) List(ctx context.Context, actor Actor) ([]domain.Registration, error) {
	if !s.allowBulk {
		s.audit.Record(ctx, actor, ActionList, OutcomeFailure, zap.String("reason", "disabled"))
		return nil, ErrBulkListingDisabled
	}
	regs, err := s.repo.ListRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, ActionList, OutcomeSuccess, zap.Int("count", len(regs)))
	return regs, nil
}

// Stats returns the total and per-category counts.
func (s *RegistrationService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountRegistrationsByCategory(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{Categories: make(map[string]int, len(domain.Categories))}
	for _, c := range domain.Categories {
		st.Categories[c] = 0
	}
	for c, n := range counts {
		st.Categories[c] = n
		st.Total += n
	}
	return st, nil
}

func normalizeRegistration(in RegistrationInput) RegistrationInput {
	trim := strings.TrimSpace
	in.NameEnglish = trim(in.NameEnglish)
	in.NameBangla = trim(in.NameBangla)
	in.FatherName = trim(in.FatherName)
	in.MotherName = trim(in.MotherName)
	in.StudentID = trim(in.StudentID)
	in.Class = trim(in.Class)
	in.Section = trim(in.Section)
	in.BloodGroup = strings.ToUpper(trim(in.BloodGroup))
	in.PhoneWhatsapp = trim(in.PhoneWhatsapp)
	in.Email = strings.ToLower(trim(in.Email))
	in.PresentAddress = trim(in.PresentAddress)
	in.PermanentAddress = trim(in.PermanentAddress)
	in.ClassCategory = trim(in.ClassCategory)
	return in
}

func validateRegistration(in RegistrationInput) error {
	fe := fieldErrors{}
	required := []struct {
		field, value string
		max          int
	}{
		{"nameEnglish", in.NameEnglish, maxFieldLen},
		{"nameBangla", in.NameBangla, maxFieldLen},
		{"fatherName", in.FatherName, maxFieldLen},
		{"motherName", in.MotherName, maxFieldLen},
		{"studentId", in.StudentID, maxFieldLen},
		{"class", in.Class, maxFieldLen},
		{"section", in.Section, maxFieldLen},
		{"bloodGroup", in.BloodGroup, maxFieldLen},
		{"phoneWhatsapp", in.PhoneWhatsapp, maxFieldLen},
		{"presentAddress", in.PresentAddress, maxAddressLen},
		{"permanentAddress", in.PermanentAddress, maxAddressLen},
		{"classCategory", in.ClassCategory, maxFieldLen},
	}
	for _, r := range required {
		if r.value == "" {
			fe.add(r.field, "is required")
		} else if utf8.RuneCountInString(r.value) > r.max {
			fe.add(r.field, fmt.Sprintf("must be at most %d characters", r.max))
		}
	}

	if in.BloodGroup != "" && !bloodGroups[in.BloodGroup] {
		fe.add("bloodGroup", "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-")
	}
	if in.PhoneWhatsapp != "" && !validPhone(in.PhoneWhatsapp) {
		fe.add("phoneWhatsapp", "must be 7 to 20 digits, optionally starting with +")
	}
	if in.Email != "" && !validEmail(in.Email) {
		fe.add("email", "must be a valid email address")
	}
	if in.ClassCategory != "" && !domain.IsCategory(in.ClassCategory) {
		fe.add("classCategory", "must be one of "+strings.Join(domain.Categories, ", "))
	}
	return fe.err()
}

func validPhone(p string) bool {
	digits := strings.TrimPrefix(p, "+")
	if len(digits) < 7 || len(digits) > 20 {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func validEmail(e string) bool {
	if utf8.RuneCountInString(e) > maxFieldLen {
		return false
	}
	addr, err := mail.ParseAddress(e)
	return err == nil && addr.Address == e && strings.Contains(e[strings.LastIndex(e, "@"):], ".")
}
