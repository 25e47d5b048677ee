package model

import (
	"time"
)

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

// Patient is owned exclusively by the store; Phone is kept in the
// digits-only normalized form and is unique across patients.
type Patient struct {
	Base
	Name      string        `db:"name" json:"name"`
	Phone     string        `db:"phone" json:"phone"`
	Email     *string       `db:"email" json:"email,omitempty"`
	BirthDate *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	Notes     string        `db:"notes" json:"notes,omitempty"`
	Status    PatientStatus `db:"status" json:"status"`
}

type CreatePatientRequest struct {
	Name      string     `json:"name" binding:"required"`
	Phone     string     `json:"phone" binding:"required,phone"`
	Email     *string    `json:"email" binding:"omitempty,email"`
	BirthDate *time.Time `json:"birth_date"`
	Notes     string     `json:"notes"`
}

type UpdatePatientRequest struct {
	Name      *string        `json:"name"`
	Phone     *string        `json:"phone" binding:"omitempty,phone"`
	Email     *string        `json:"email" binding:"omitempty,email"`
	BirthDate *time.Time     `json:"birth_date"`
	Notes     *string        `json:"notes"`
	Status    *PatientStatus `json:"status" binding:"omitempty,oneof=active inactive"`
}
