package stats

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestDaysParam_DefaultsToSevenDays(t *testing.T) {
	r := httptest.NewRequest("GET", "/api", nil)

	got := daysParam(r)
	want := time.Now().UTC().AddDate(0, 0, -7)

	if got.Sub(want).Abs() > time.Second {
		t.Errorf("daysParam() = %v, want ~%v", got, want)
	}
}

func TestDaysParam_HonorsQueryParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/api?days=30", nil)

	got := daysParam(r)
	want := time.Now().UTC().AddDate(0, 0, -30)

	if got.Sub(want).Abs() > time.Second {
		t.Errorf("daysParam() = %v, want ~%v", got, want)
	}
}

func TestDaysParam_IgnoresInvalidOrNonPositiveValues(t *testing.T) {
	for _, v := range []string{"abc", "0", "-5"} {
		r := httptest.NewRequest("GET", "/api?days="+v, nil)

		got := daysParam(r)
		want := time.Now().UTC().AddDate(0, 0, -7)

		if got.Sub(want).Abs() > time.Second {
			t.Errorf("daysParam() with days=%q = %v, want default ~%v", v, got, want)
		}
	}
}
