package quote

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"zimship/validate"
)

var (
	ErrNoItems      = errors.New("quote: at least one item is required")
	ErrUnknownItem  = errors.New("quote: unknown item")
	ErrUnknownCity  = errors.New("quote: unknown delivery city")
	ErrNoCollection = errors.New("quote: no collection route covers this postcode")
	ErrBadQuantity  = errors.New("quote: quantity must be positive")
)

// Item is one line of a quote request.
type Item struct {
	Kind     ItemKind `json:"kind" validate:"required,oneof=drum box trunk"`
	Size     string   `json:"size"`
	Quantity int      `json:"quantity" validate:"gte=1,lte=100"`
}

// Request asks for a price to deliver items to City, optionally collected
// from a UK postcode.
type Request struct {
	Items              []Item `json:"items" validate:"required,min=1,dive"`
	City               string `json:"city" validate:"required"`
	CollectionPostcode string `json:"collectionPostcode" validate:"omitempty,ukpostcode"`
}

// Line is a priced request item.
type Line struct {
	Kind     ItemKind `json:"kind"`
	Size     string   `json:"size,omitempty"`
	Quantity int      `json:"quantity"`
	UnitGBP  float64  `json:"unitGbp"`
	TotalGBP float64  `json:"totalGbp"`
}

// Breakdown is a full quote in GBP.
type Breakdown struct {
	Lines        []Line  `json:"lines"`
	SubtotalGBP  float64 `json:"subtotalGbp"`
	SurchargeGBP float64 `json:"surchargeGbp"`
	TotalGBP     float64 `json:"totalGbp"`
	City         City    `json:"city"`
	Route        string  `json:"route,omitempty"`
}

// Quote prices req from the static shipping tables.
func Quote(req Request) (Breakdown, error) {
	if len(req.Items) == 0 {
		return Breakdown{}, ErrNoItems
	}
	city, ok := FindCity(req.City)
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: %q", ErrUnknownCity, req.City)
	}

	var route string
	if req.CollectionPostcode != "" {
		r, ok := CollectionRoute(req.CollectionPostcode)
		if !ok {
			return Breakdown{}, fmt.Errorf("%w: %q", ErrNoCollection, req.CollectionPostcode)
		}
		route = r
	}

	drums := 0
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return Breakdown{}, ErrBadQuantity
		}
		if it.Kind == KindDrum {
			drums += it.Quantity
		}
	}

	out := Breakdown{City: city, Route: route}
	units := 0
	for _, it := range req.Items {
		unit, size, err := unitPrice(it, drums)
		if err != nil {
			return Breakdown{}, err
		}
		line := Line{
			Kind:     it.Kind,
			Size:     size,
			Quantity: it.Quantity,
			UnitGBP:  unit,
			TotalGBP: round2(unit * float64(it.Quantity)),
		}
		out.Lines = append(out.Lines, line)
		out.SubtotalGBP += line.TotalGBP
		units += it.Quantity
	}

	out.SubtotalGBP = round2(out.SubtotalGBP)
	out.SurchargeGBP = round2(zoneSurcharge[city.Zone] * float64(units))
	out.TotalGBP = round2(out.SubtotalGBP + out.SurchargeGBP)
	return out, nil
}

func unitPrice(it Item, drums int) (float64, string, error) {
	size := strings.ToLower(strings.TrimSpace(it.Size))
	switch it.Kind {
	case KindDrum:
		for _, tier := range drumTiers {
			if drums >= tier.minQty {
				return tier.price, "", nil
			}
		}
	case KindBox:
		if size == "" {
			size = "medium"
		}
		if p, ok := boxPrices[size]; ok {
			return p, size, nil
		}
	case KindTrunk:
		if size == "" {
			size = "standard"
		}
		if p, ok := trunkPrices[size]; ok {
			return p, size, nil
		}
	}
	return 0, "", fmt.Errorf("%w: %s %s", ErrUnknownItem, it.Kind, it.Size)
}

// FindCity returns the delivery city named name, case-insensitively.
func FindCity(name string) (City, bool) {
	name = strings.TrimSpace(name)
	for _, c := range cities {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return City{}, false
}

// SearchCities returns cities whose name or province contains q, prefix
// matches first. An empty q returns every city.
func SearchCities(q string) []City {
	q = strings.ToLower(strings.TrimSpace(q))
	var prefix, contains []City
	for _, c := range cities {
		name := strings.ToLower(c.Name)
		switch {
		case q == "" || strings.HasPrefix(name, q):
			prefix = append(prefix, c)
		case strings.Contains(name, q) || strings.Contains(strings.ToLower(c.Province), q):
			contains = append(contains, c)
		}
	}
	sort.SliceStable(prefix, func(i, j int) bool { return prefix[i].Name < prefix[j].Name })
	sort.SliceStable(contains, func(i, j int) bool { return contains[i].Name < contains[j].Name })
	return append(prefix, contains...)
}

// CollectionRoute returns the collection run for a UK postcode.
func CollectionRoute(postcode string) (string, bool) {
	if !validate.IsUKPostcode(postcode) {
		return "", false
	}
	area := validate.PostcodeArea(postcode)
	r, ok := collectionRoutes[area]
	return r, ok
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
