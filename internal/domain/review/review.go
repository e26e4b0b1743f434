// Package review stores customer product reviews and keeps the catalog
// rating aggregate in step with them.
package review

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/auth"
	"github.com/xenking/luxe-store/internal/domain/product"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

const (
	maxTitleLen   = 120
	maxCommentLen = 2000
)

// Review is one customer's rating of a product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Rating    int
	Title     string
	Comment   string
	CreatedAt time.Time
}

// Input is the customer-supplied part of a review.
type Input struct {
	Rating  int
	Title   string
	Comment string
}

// Validate checks rating bounds and text lengths.
func (in *Input) Validate() error {
	f := apperr.FieldErrors{}
	if in.Rating < MinRating || in.Rating > MaxRating {
		f["rating"] = "Rating must be between 1 and 5"
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLen {
		f["title"] = "Title is too long"
	}
	if utf8.RuneCountInString(in.Comment) > maxCommentLen {
		f["comment"] = "Comment is too long"
	}
	return f.Err("invalid review")
}

// Summary is the rating aggregate stored on the product.
type Summary struct {
	Rating float64
	Count  int
}

// With returns s after one more review of rating.
func (s Summary) With(rating int) Summary {
	n := s.Count + 1
	return Summary{
		Rating: (s.Rating*float64(s.Count) + float64(rating)) / float64(n),
		Count:  n,
	}
}

// Repository persists reviews. Create stores r and folds its rating into the
// product's Summary atomically, returning product.ErrNotFound when the
// product does not exist.
type Repository interface {
	ListByProduct(ctx context.Context, productID string) ([]Review, error)
	Create(ctx context.Context, r *Review) (Summary, error)
}

// ProductReader checks that a product exists.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Invalidator drops cached copies of a product.
type Invalidator interface {
	Invalidate(ctx context.Context, productID string)
}

// Option configures a Service.
type Option func(*Service)

// WithInvalidator makes the Service drop cached products whose rating changed.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) {
		s.invalidator = inv
	}
}

// Service is the product review service.
type Service struct {
	repo        Repository
	products    ProductReader
	invalidator Invalidator
	now         func() time.Time
}

// NewService creates a review Service.
func NewService(repo Repository, products ProductReader, opts ...Option) *Service {
	s := &Service{repo: repo, products: products, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the reviews of productID, newest first.
func (s *Service) List(ctx context.Context, productID string) ([]Review, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	if items == nil {
		items = []Review{}
	}
	return items, nil
}

// Add stores a review by the authenticated customer.
func (s *Service) Add(ctx context.Context, productID string, in Input) (*Review, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Comment = strings.TrimSpace(in.Comment)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r := &Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    id.UserID,
		Rating:    in.Rating,
		Title:     in.Title,
		Comment:   in.Comment,
		CreatedAt: s.now().UTC(),
	}
	sum, err := s.repo.Create(ctx, r)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create review")
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, productID)
	}

	zctx.From(ctx).Info("Review added",
		zap.String("product_id", productID),
		zap.String("user_id", id.UserID),
		zap.Int("rating", in.Rating),
		zap.Int("reviews", sum.Count),
	)
	return r, nil
}
