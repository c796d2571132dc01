package mission

import (
	"context"
	"testing"
	"time"
)

func TestValidate_RejectsNegativePalletCount(t *testing.T) {
	s := &Service{}
	errs, _ := s.validate(context.Background(), nil, time.Now(), -1, nil, nil)

	if len(errs) != 1 || errs[0].Field != "pallet_count" {
		t.Fatalf("errs = %v, want one pallet_count problem", errs)
	}
}

func TestValidate_RejectsStartAfterEnd(t *testing.T) {
	s := &Service{}
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	errs, _ := s.validate(context.Background(), nil, time.Now(), 0, &start, &end)

	if len(errs) != 1 || errs[0].Field != "start_time" {
		t.Fatalf("errs = %v, want one start_time problem", errs)
	}
}

func TestValidate_AcceptsSaneInputsWithNoDriver(t *testing.T) {
	s := &Service{}
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	errs, warnings := s.validate(context.Background(), nil, time.Now(), 10, &start, &end)

	if len(errs) != 0 || len(warnings) != 0 {
		t.Fatalf("errs = %v, warnings = %v, want both empty", errs, warnings)
	}
}
