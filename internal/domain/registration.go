package domain

import (
	"context"
	"time"
)

// Registration is a registrant record as stored by the data layer.
type Registration struct {
	ID                 string    `json:"id"`
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

// RegistrationRepository is the port for registration persistence.
// Lookups return (nil, nil) when nothing matches.
type RegistrationRepository interface {
	CreateRegistration(ctx context.Context, r *Registration) error
	ListRegistrations(ctx context.Context) ([]Registration, error)
	GetRegistrationByNumber(ctx context.Context, number string) (*Registration, error)
	GetRegistrationByStudentID(ctx context.Context, studentID string) (*Registration, error)
	GetRegistrationByEmail(ctx context.Context, email string) (*Registration, error)
	CountRegistrationsByCategory(ctx context.Context) (map[string]int, error)
}
