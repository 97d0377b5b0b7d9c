package application

import (
	"context"
	"sync"
	"time"

	"github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
)

// Reader serves product lookups and attribute-to-variant resolution. The
// variant index of a product is cached and rebuilt only when the product's
// UpdatedAt moves, so a sync invalidates it without explicit signalling.
type Reader struct {
	repo Repository

	mu    sync.Mutex
	cache map[string]cachedIndex
}

type cachedIndex struct {
	updatedAt time.Time
	ix        *domain.VariantIndex
}

func NewReader(repo Repository) *Reader {
	return &Reader{repo: repo, cache: make(map[string]cachedIndex)}
}

func (r *Reader) ProductWithVariants(ctx context.Context, productID string) (domain.Product, error) {
	return r.repo.ProductWithVariants(ctx, productID)
}

func (r *Reader) MatchVariant(ctx context.Context, p domain.Product, attrs map[string]string) (domain.Variant, error) {
	r.mu.Lock()
	entry, ok := r.cache[p.ID]
	if !ok || !entry.updatedAt.Equal(p.UpdatedAt) {
		entry = cachedIndex{updatedAt: p.UpdatedAt, ix: domain.BuildVariantIndex(p.ActiveVariants())}
		r.cache[p.ID] = entry
	}
	r.mu.Unlock()

	return entry.ix.Match(attrs)
}
