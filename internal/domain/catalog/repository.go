package catalog

import (
	"context"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// SetAvailable flips a product's availability flag.
func (r *Repository) SetAvailable(ctx context.Context, id string, available bool) error {
	return r.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Update("available", available).Error
}

// UnavailableProducts returns the subset of ids that are unknown or marked unavailable,
// preserving input order.
func (r *Repository) UnavailableProducts(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var available []string
	if err := r.db.WithContext(ctx).
		Model(&Product{}).
		Where("id IN ?", ids).
		Where("available = ?", true).
		Pluck("id", &available).Error; err != nil {
		return nil, err
	}

	ok := make(map[string]bool, len(available))
	for _, id := range available {
		ok[id] = true
	}

	var out []string
	for _, id := range ids {
		if !ok[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
