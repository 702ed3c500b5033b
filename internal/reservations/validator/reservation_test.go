package validator

import (
	"errors"
	"testing"
	"time"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"
	"slotbook/pkg/validation"
)

func newValidator() *ReservationValidator {
	return NewReservationValidator(logger.New(logger.Config{Level: logger.ERROR, Service: "test"}))
}

func TestValidateRequest(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		req        model.ReservationRequest
		wantFields []string
	}{
		{
			name: "valid",
			req:  model.ReservationRequest{StartTime: start, CustomerName: "Aziz", CustomerPhone: "+998901234567"},
		},
		{
			name:       "missing name",
			req:        model.ReservationRequest{StartTime: start, CustomerPhone: "+998901234567"},
			wantFields: []string{"customer_name"},
		},
		{
			name:       "local phone not normalized",
			req:        model.ReservationRequest{StartTime: start, CustomerName: "Aziz", CustomerPhone: "901234567"},
			wantFields: []string{"customer_phone"},
		},
		{
			name:       "missing everything",
			req:        model.ReservationRequest{},
			wantFields: []string{"start_time", "customer_name", "customer_phone"},
		},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRequest(&tt.req)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var verrs validation.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			got := map[string]bool{}
			for _, e := range verrs {
				got[e.Field] = true
			}
			for _, f := range tt.wantFields {
				if !got[f] {
					t.Errorf("expected error on %s, got %v", f, verrs)
				}
			}
		})
	}
}

func TestValidate_Status(t *testing.T) {
	r := &model.Reservation{
		StartTime:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		CustomerName:  "Aziz",
		CustomerPhone: "+998901234567",
		OwnerID:       "u1",
		Status:        "cancelled",
	}

	err := newValidator().Validate(r)
	var verrs validation.ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].Field != "status" {
		t.Fatalf("expected status error, got %v", err)
	}

	appErr := verrs.AppError()
	if appErr.Details["status"] == nil {
		t.Errorf("app error details missing status: %v", appErr.Details)
	}
}
