package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentalert/dentalert-api/internal/model"
	"github.com/dentalert/dentalert-api/internal/repository"
	"github.com/dentalert/dentalert-api/pkg/phone"
)

type Service struct {
	repo repository.PatientRepository
}

func NewService(repo repository.PatientRepository) *Service {
	return &Service{repo: repo}
}

// CreatePatient registers a patient; the phone is normalized before it is
// stored so inbound replies can be matched by exact equality.
func (s *Service) CreatePatient(ctx context.Context, patient *model.Patient) (*model.Patient, error) {
	normalized, err := phone.Normalize(patient.Phone)
	if err != nil {
		return nil, fmt.Errorf("invalid patient phone: %w", err)
	}
	patient.Phone = normalized
	patient.Status = model.PatientStatusActive

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	return s.repo.List(ctx)
}

// UpdatePatient applies a partial update on top of the stored record.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		patient.Name = *req.Name
	}
	if req.Phone != nil {
		normalized, err := phone.Normalize(*req.Phone)
		if err != nil {
			return nil, fmt.Errorf("invalid patient phone: %w", err)
		}
		patient.Phone = normalized
	}
	if req.Email != nil {
		patient.Email = req.Email
	}
	if req.BirthDate != nil {
		patient.BirthDate = req.BirthDate
	}
	if req.Notes != nil {
		patient.Notes = *req.Notes
	}
	if req.Status != nil {
		patient.Status = *req.Status
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// DeactivatePatient is the reminder flow's only deletion: a soft status
// flip, never a hard delete.
func (s *Service) DeactivatePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}
