package domain

import (
	"strings"
	"time"
)

const (
	redactMask        = "***"
	redactMaskChar    = "*"
	redactEmailMasked = "***@***"
	redactAddressKeep = 20
	redactEllipsis    = "..."
	redactPhoneMinLen = 7
	redactPhoneKeep   = 3
)

// RedactedRegistration is the masked projection of a Registration returned by
// single-record search. It is never persisted.
type RedactedRegistration struct {
	RegistrationNumber string    `json:"registrationNumber"`
	NameEnglish        string    `json:"nameEnglish"`
	NameBangla         string    `json:"nameBangla"`
	FatherName         string    `json:"fatherName"`
	MotherName         string    `json:"motherName"`
	StudentID          string    `json:"studentId"`
	Class              string    `json:"class"`
	Section            string    `json:"section"`
	BloodGroup         string    `json:"bloodGroup"`
	PhoneWhatsapp      string    `json:"phoneWhatsapp"`
	Email              string    `json:"email"`
	PresentAddress     string    `json:"presentAddress"`
	PermanentAddress   string    `json:"permanentAddress"`
	ClassCategory      string    `json:"classCategory"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Redact masks the personally identifying fields of r. The primary names,
// identifiers, class data and timestamp are kept so an operator can confirm
// who the record belongs to.
func Redact(r Registration) RedactedRegistration {
	return RedactedRegistration{
		RegistrationNumber: r.RegistrationNumber,
		NameEnglish:        r.NameEnglish,
		NameBangla:         r.NameBangla,
		FatherName:         MaskName(r.FatherName),
		MotherName:         MaskName(r.MotherName),
		StudentID:          r.StudentID,
		Class:              r.Class,
		Section:            r.Section,
		BloodGroup:         r.BloodGroup,
		PhoneWhatsapp:      MaskPhone(r.PhoneWhatsapp),
		Email:              MaskEmail(r.Email),
		PresentAddress:     MaskAddress(r.PresentAddress),
		PermanentAddress:   MaskAddress(r.PermanentAddress),
		ClassCategory:      r.ClassCategory,
		CreatedAt:          r.CreatedAt,
	}
}

// MaskName keeps the first word and replaces the rest with a single mask.
func MaskName(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + " " + redactMask
	}
}

// MaskPhone keeps the first and last three characters and replaces every
// character in between. Numbers shorter than seven characters are fully masked.
func MaskPhone(phone string) string {
	rs := []rune(phone)
	if len(rs) < redactPhoneMinLen {
		return strings.Repeat(redactMaskChar, len(rs))
	}
	hidden := len(rs) - 2*redactPhoneKeep
	return string(rs[:redactPhoneKeep]) + strings.Repeat(redactMaskChar, hidden) + string(rs[len(rs)-redactPhoneKeep:])
}

// MaskEmail keeps two characters of the local part and the full domain.
// An empty address stays empty.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	lr := []rune(local)
	if !ok || domain == "" || len(lr) < 2 {
		return redactEmailMasked
	}
	return string(lr[:2]) + redactMask + "@" + domain
}

// MaskAddress truncates to the first twenty characters.
func MaskAddress(addr string) string {
	rs := []rune(addr)
	if len(rs) <= redactAddressKeep {
		return addr
	}
	return string(rs[:redactAddressKeep]) + redactEllipsis
}
