package adapthttp

import (
	"encoding/csv"
	"io"

	"quizfest/internal/domain"
)

var csvHeader = []string{
	"Registration Date", "Registration Number", "Name (English)", "Name (Bangla)",
	"Father's Name", "Mother's Name", "Student ID", "Class", "Section", "Blood Group",
	"Phone (WhatsApp)", "Email", "Present Address", "Permanent Address", "Class Category",
}

// writeRegistrationsCSV renders records with a UTF-8 BOM so spreadsheet
// programs pick up the Bangla names.
func writeRegistrationsCSV(w io.Writer, records []domain.Registration) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.CreatedAt.Format("2006-01-02"),
			r.RegistrationNumber,
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
		}
		if err := cw.Write(sanitizeCSVRow(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// sanitizeCSVRow prefixes cells that a spreadsheet would evaluate as formulas.
func sanitizeCSVRow(row []string) []string {
	for i, v := range row {
		if v == "" {
			continue
		}
		switch v[0] {
		case '+':
			if isDigits(v[1:]) {
				continue
			}
			row[i] = "'" + v
		case '=', '-', '@', '\t', '\r':
			row[i] = "'" + v
		}
	}
	return row
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
