package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/luxe-store/internal/domain/auth"
)

// Service is the catalog query service plus the admin write path.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the page of products selected by f.
func (s *Service) List(ctx context.Context, f Filters) (*Page, error) {
	q := f.Normalize()

	items, total, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	if items == nil {
		items = []Product{}
	}

	return &Page{
		Items:      items,
		Pagination: NewPagination(q.Page, q.Limit, total),
	}, nil
}

// Get returns a single product or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create validates and stores a new product. Admin only.
func (s *Service) Create(ctx context.Context, p Product) (*Product, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.ID = uuid.NewString()
	p.CreatedAt = s.now().UTC()
	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}

	zctx.From(ctx).Info("Product created",
		zap.String("product_id", p.ID),
		zap.String("admin_id", admin.UserID),
	)
	return &p, nil
}

// Update replaces the stored product with id. Admin only.
func (s *Service) Update(ctx context.Context, id string, p Product) (*Product, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}

	zctx.From(ctx).Info("Product updated",
		zap.String("product_id", p.ID),
		zap.String("admin_id", admin.UserID),
	)
	return &p, nil
}

// Delete removes the product with id. Admin only.
func (s *Service) Delete(ctx context.Context, id string) error {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	zctx.From(ctx).Info("Product deleted",
		zap.String("product_id", id),
		zap.String("admin_id", admin.UserID),
	)
	return nil
}
