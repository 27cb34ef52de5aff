package quote

import (
	"errors"
	"testing"
)

func TestQuoteDrumTiersAndSurcharge(t *testing.T) {
	b, err := Quote(Request{
		Items: []Item{
			{Kind: KindDrum, Quantity: 2},
			{Kind: KindBox, Size: "large", Quantity: 1},
		},
		City: "mutare",
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if b.City.Name != "Mutare" || b.City.Zone != 2 {
		t.Fatalf("unexpected city %+v", b.City)
	}
	if b.Lines[0].UnitGBP != 250 || b.Lines[0].TotalGBP != 500 {
		t.Fatalf("expected 2-drum tier at 250, got %+v", b.Lines[0])
	}
	if b.Lines[1].UnitGBP != 95 {
		t.Fatalf("expected large box at 95, got %+v", b.Lines[1])
	}
	if b.SubtotalGBP != 595 || b.SurchargeGBP != 30 || b.TotalGBP != 625 {
		t.Fatalf("unexpected totals %+v", b)
	}
}

func TestQuoteSingleDrumHarareWithCollection(t *testing.T) {
	b, err := Quote(Request{
		Items:              []Item{{Kind: KindDrum, Quantity: 1}},
		City:               "Harare",
		CollectionPostcode: "SW1A 1AA",
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if b.TotalGBP != 260 || b.SurchargeGBP != 0 {
		t.Fatalf("unexpected totals %+v", b)
	}
	if b.Route != "London" {
		t.Fatalf("expected London route, got %q", b.Route)
	}
}

func TestQuoteErrors(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"no items", Request{City: "Harare"}, ErrNoItems},
		{"unknown city", Request{Items: []Item{{Kind: KindDrum, Quantity: 1}}, City: "Atlantis"}, ErrUnknownCity},
		{"unknown size", Request{Items: []Item{{Kind: KindBox, Size: "huge", Quantity: 1}}, City: "Harare"}, ErrUnknownItem},
		{"zero quantity", Request{Items: []Item{{Kind: KindTrunk, Quantity: 0}}, City: "Harare"}, ErrBadQuantity},
		{"no route", Request{Items: []Item{{Kind: KindDrum, Quantity: 1}}, City: "Harare", CollectionPostcode: "ZE1 0AA"}, ErrNoCollection},
	}
	for _, tc := range cases {
		if _, err := Quote(tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSearchCities(t *testing.T) {
	got := SearchCities("bu")
	if len(got) == 0 || got[0].Name != "Bulawayo" {
		t.Fatalf("expected Bulawayo first, got %+v", got)
	}
	for _, c := range SearchCities("manicaland") {
		if c.Province != "Manicaland" {
			t.Fatalf("unexpected province match %+v", c)
		}
	}
	if len(SearchCities("")) != len(cities) {
		t.Fatal("empty query should list all cities")
	}
}
