package address

import (
	"context"
	"errors"
	"strings"

	"zimship/validate"
)

// ErrInvalidPostcode is returned for a UK address whose postcode does not
// parse.
var ErrInvalidPostcode = errors.New("address: invalid UK postcode")

const CountryUK = "United Kingdom"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	return s.repo.List(ctx, userID)
}

// Create normalises the address and stores it for userID. UK addresses
// need a valid postcode; Zimbabwe addresses usually have none.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Address, error) {
	req.Label = strings.TrimSpace(req.Label)
	req.Line1 = strings.TrimSpace(req.Line1)
	req.Line2 = strings.TrimSpace(req.Line2)
	req.City = strings.TrimSpace(req.City)
	req.Postcode = strings.ToUpper(strings.TrimSpace(req.Postcode))

	if req.Country == CountryUK && !validate.IsUKPostcode(req.Postcode) {
		return Address{}, ErrInvalidPostcode
	}
	return s.repo.Create(ctx, userID, req)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
