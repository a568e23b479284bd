// Package sheets appends registrations to a Google Sheets spreadsheet using a
// service account.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quizfest/internal/domain"

	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	tokenURL = "https://oauth2.googleapis.com/token"

	appendRange = "Sheet1!A:N"
	headerRange = "Sheet1!A1:N1"

	// valueInput keeps registrant text literal; USER_ENTERED would evaluate
	// formulas.
	valueInput = "RAW"
)

var header = []string{
	"Timestamp",
	"Name (English)",
	"Name (Bangla)",
	"Father's Name",
	"Mother's Name",
	"Student ID",
	"Class",
	"Section",
	"Blood Group",
	"Phone (WhatsApp)",
	"Email",
	"Present Address",
	"Permanent Address",
	"Class Category",
}

// Config identifies the spreadsheet and the service account.
type Config struct {
	SpreadsheetID string
	ClientEmail   string
	// PrivateKey is the PEM key. Literal "\n" sequences, as commonly found
	// in environment variables, are turned into newlines.
	PrivateKey string
}

// Enabled reports whether every field is set.
func (c Config) Enabled() bool {
	return c.SpreadsheetID != "" && c.ClientEmail != "" && c.PrivateKey != ""
}

// Notifier appends one row per registration.
type Notifier struct {
	values  *gsheets.SpreadsheetsValuesService
	sheetID string
	now     func() time.Time
}

// New creates a Notifier whose client authenticates as the service account.
func New(ctx context.Context, cfg Config) (*Notifier, error) {
	jc := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     []string{gsheets.SpreadsheetsScope},
		TokenURL:   tokenURL,
	}
	return newWithOptions(ctx, cfg.SpreadsheetID, option.WithHTTPClient(jc.Client(ctx)))
}

func newWithOptions(ctx context.Context, sheetID string, opts ...option.ClientOption) (*Notifier, error) {
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &Notifier{values: svc.Spreadsheets.Values, sheetID: sheetID, now: time.Now}, nil
}

// Name implements app.Notifier.
func (n *Notifier) Name() string { return "sheets" }

// NotifyRegistration implements app.Notifier.
func (n *Notifier) NotifyRegistration(ctx context.Context, r domain.Registration) error {
	row := rowOf(
		n.now().UTC().Format(time.RFC3339),
		r.NameEnglish,
		r.NameBangla,
		r.FatherName,
		r.MotherName,
		r.StudentID,
		r.Class,
		r.Section,
		r.BloodGroup,
		r.PhoneWhatsapp,
		r.Email,
		r.PresentAddress,
		r.PermanentAddress,
		r.ClassCategory,
	)
	_, err := n.values.Append(n.sheetID, appendRange, &gsheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption(valueInput).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	return nil
}

// WriteHeader overwrites the first row with the column titles.
func (n *Notifier) WriteHeader(ctx context.Context) error {
	_, err := n.values.Update(n.sheetID, headerRange, &gsheets.ValueRange{Values: [][]any{rowOf(header...)}}).
		ValueInputOption(valueInput).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets header: %w", err)
	}
	return nil
}

func rowOf(cells ...string) []any {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
