package finance

import (
	"context"
	"testing"
	"time"

	"github.com/freightplan/planningserver/internal/apperr"
)

func TestCreateRevenue_RejectsNegativePrice(t *testing.T) {
	s := NewService(nil)
	_, err := s.CreateRevenue(context.Background(), RevenueParams{Destination: "Lyon", PricePerPallet: -1})

	aerr, ok := apperr.As(err)
	if !ok || aerr.Kind != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCreateRevenue_RejectsValidFromAfterValidTo(t *testing.T) {
	s := NewService(nil)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.CreateRevenue(context.Background(), RevenueParams{
		Destination: "Lyon", PricePerPallet: 10, ValidFrom: &from, ValidTo: &to,
	})

	aerr, ok := apperr.As(err)
	if !ok || aerr.Kind != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestFinanceStats_RejectsFromAfterTo(t *testing.T) {
	s := NewService(nil)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.FinanceStats(context.Background(), from, to)

	aerr, ok := apperr.As(err)
	if !ok || aerr.Kind != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestMonthlyStats_RejectsOutOfRangeMonth(t *testing.T) {
	s := NewService(nil)

	for _, month := range []int{0, 13, -1} {
		_, err := s.MonthlyStats(context.Background(), 2026, month)
		aerr, ok := apperr.As(err)
		if !ok || aerr.Kind != apperr.KindValidation {
			t.Errorf("month %d: err = %v, want validation error", month, err)
		}
	}
}
