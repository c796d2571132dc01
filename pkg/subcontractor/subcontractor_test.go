package subcontractor

import (
	"context"
	"testing"

	"github.com/freightplan/planningserver/internal/apperr"
)

func TestCreateTariff_RejectsUnknownUnit(t *testing.T) {
	s := NewService(nil)

	for _, unit := range []TariffUnit{"per_container", "", "PER_TRIP"} {
		_, err := s.CreateTariff(context.Background(), 1, TariffParams{Unit: unit})
		aerr, ok := apperr.As(err)
		if !ok || aerr.Kind != apperr.KindValidation {
			t.Errorf("unit %q: err = %v, want validation error", unit, err)
		}
	}
}
