package holidays

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCountriesFixed(t *testing.T) {
	want := []string{"Italy", "Spain", "United States", "France", "Germany", "UK"}
	if diff := cmp.Diff(want, Countries()); diff != "" {
		t.Fatalf("countries mismatch (-want +got):\n%s", diff)
	}
	for _, c := range want {
		if !Supported(c) {
			t.Fatalf("%s should be supported", c)
		}
	}
	if Supported("Country name") {
		t.Fatalf("placeholder must not be a country")
	}
}

func TestForYearsContainsChristmas(t *testing.T) {
	for _, country := range Countries() {
		list, err := ForYears(country, 2021)
		if err != nil {
			t.Fatalf("%s: %v", country, err)
		}
		if len(list) == 0 {
			t.Fatalf("%s: no holidays", country)
		}
		found := false
		for _, h := range list {
			if h.Date.Equal(time.Date(2021, 12, 25, 0, 0, 0, 0, time.UTC)) {
				found = true
			}
			if h.Date.Year() != 2021 {
				t.Fatalf("%s: holiday outside year: %v", country, h.Date)
			}
		}
		if !found {
			t.Fatalf("%s: christmas missing", country)
		}
		for i := 1; i < len(list); i++ {
			if list[i].Date.Before(list[i-1].Date) {
				t.Fatalf("%s: not sorted", country)
			}
		}
	}
}

func TestUnknownCountry(t *testing.T) {
	if _, err := ForYears("Atlantis", 2021); !errors.Is(err, ErrUnknownCountry) {
		t.Fatalf("err = %v", err)
	}
}

func TestBetweenSpansYears(t *testing.T) {
	start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	list, err := Between("United States", end, start)
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	years := map[int]bool{}
	for _, h := range list {
		years[h.Date.Year()] = true
	}
	if !years[2020] || !years[2021] {
		t.Fatalf("expected holidays in both years, got %v", years)
	}
}
