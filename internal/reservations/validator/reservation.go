package validator

import (
	"github.com/go-playground/validator/v10"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"
	"slotbook/pkg/validation"
)

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize reservation validator", "error", err)
	}

	log.Debug("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

// ValidateRequest checks caller input. Time rules (grid alignment, past)
// belong to the lifecycle and are not checked here.
func (v *ReservationValidator) ValidateRequest(req *model.ReservationRequest) error {
	return validation.Struct(v.validate, req)
}

// Validate checks a complete record before it is written.
func (v *ReservationValidator) Validate(r *model.Reservation) error {
	return validation.Struct(v.validate, r)
}
