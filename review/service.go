package review

import (
	"context"
	"errors"
	"math"
	"strings"
)

var ErrInvalidRating = errors.New("review: rating must be between 1 and 5")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListApproved(ctx context.Context, limit int) ([]Review, error) {
	return s.repo.ListApproved(ctx, limit)
}

// Submit stores a review pending moderation. userID is nil for guests.
func (s *Service) Submit(ctx context.Context, userID *string, req CreateRequest) (Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return Review{}, ErrInvalidRating
	}
	req.AuthorName = strings.TrimSpace(req.AuthorName)
	req.Comment = strings.TrimSpace(req.Comment)
	return s.repo.Create(ctx, userID, req)
}

func (s *Service) Approve(ctx context.Context, id string) (Review, error) {
	return s.repo.Approve(ctx, id)
}

// Summarize returns the count and the average rating rounded to one decimal.
func Summarize(reviews []Review) Summary {
	if len(reviews) == 0 {
		return Summary{}
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	avg := float64(total) / float64(len(reviews))
	return Summary{Count: len(reviews), Average: math.Round(avg*10) / 10}
}
