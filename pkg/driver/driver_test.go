package driver

import (
	"context"
	"testing"
	"time"

	"github.com/freightplan/planningserver/internal/apperr"
)

func TestCreateUnavailability_RejectsStartAfterEnd(t *testing.T) {
	s := NewService(nil)
	start := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.CreateUnavailability(context.Background(), 1, start, end, "leave", nil)

	aerr, ok := apperr.As(err)
	if !ok || aerr.Kind != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCreateUnavailability_RejectsUnknownReasonCode(t *testing.T) {
	s := NewService(nil)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	_, err := s.CreateUnavailability(context.Background(), 1, start, end, "vacation", nil)

	aerr, ok := apperr.As(err)
	if !ok || aerr.Kind != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}
