package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dawidbera/secure-serverless-marketplace/internal/apperr"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
	"github.com/dawidbera/secure-serverless-marketplace/internal/pkg/cache"
	"github.com/dawidbera/secure-serverless-marketplace/internal/pkg/fieldcrypt"
)

// Service exposes product CRUD over the transactional store. Creation is a
// plain insert guarded by "does not already exist"; it never touches the
// optimistic-concurrency machinery.
//
// cipher and listings cache are both optional: a nil cipher stores the
// supplier email as-is, a nil cache makes every listing hit the store.
type Service struct {
	store    kvstore.Store
	cipher   fieldcrypt.Cipher
	cache    cache.Cache
	cacheTTL time.Duration

	now func() time.Time
}

// NewService wires the catalog to its store and optional collaborators.
func NewService(store kvstore.Store, cipher fieldcrypt.Cipher, c cache.Cache, cacheTTL time.Duration) *Service {
	return &Service{
		store:    store,
		cipher:   cipher,
		cache:    c,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Create validates and inserts a new product. The id is assigned when
// absent, the version always starts at 1 regardless of input.
func (s *Service) Create(ctx context.Context, p Product) (*Product, error) {
	if p.Name == "" {
		return nil, apperr.Validationf("name is required")
	}
	if p.Category == "" {
		return nil, apperr.Validationf("category is required")
	}
	if p.Price <= 0 {
		return nil, apperr.Validationf("price must be positive")
	}
	if p.StockQuantity < 0 {
		return nil, apperr.Validationf("stockQuantity must not be negative")
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Version = 1

	stored := p
	if stored.SupplierEmail != "" && s.cipher != nil {
		enc, err := s.cipher.EncryptString(stored.SupplierEmail)
		if err != nil {
			return nil, fmt.Errorf("catalog: encrypt supplier email: %w", err)
		}
		stored.SupplierEmail = enc
	}

	value, err := Encode(stored)
	if err != nil {
		return nil, err
	}

	score := float64(s.now().UnixNano())
	outcome, err := s.store.Apply(ctx, kvstore.InsertIfAbsent{
		Key:   ProductKey(p.ID),
		Value: value,
		Indexes: []kvstore.IndexEntry{
			{Index: IndexCatalog, IndexKey: CatalogAllKey, Score: score},
			{Index: IndexCategory, IndexKey: p.Category, Score: score},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: create product %s: %w: %v", p.ID, apperr.ErrUnavailable, err)
	}
	if outcome == kvstore.Aborted {
		return nil, fmt.Errorf("product %s already exists: %w", p.ID, apperr.ErrConflict)
	}

	s.invalidateListings(ctx, p.Category)
	return &p, nil
}

// Get returns a product by id with sensitive fields decrypted.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	raw, err := s.store.Get(ctx, ProductKey(id))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get product %s: %w: %v", id, apperr.ErrUnavailable, err)
	}
	p, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := s.reveal(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all products, or only those in the given category. Listings
// are served read-through from the cache when one is configured.
func (s *Service) List(ctx context.Context, category string) ([]Product, error) {
	cacheKey := s.listingCacheKey(category)
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			// The cache is an optimization: fall through to the store.
			slog.WarnContext(ctx, "listing cache read failed", "key", cacheKey, "error", err)
		} else if hit != "" {
			var products []Product
			if err := json.Unmarshal([]byte(hit), &products); err == nil {
				return products, nil
			}
		}
	}

	index, indexKey := IndexCatalog, CatalogAllKey
	if category != "" {
		index, indexKey = IndexCategory, category
	}
	raws, err := s.store.QueryIndex(ctx, index, indexKey, false)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w: %v", apperr.ErrUnavailable, err)
	}

	products := make([]Product, 0, len(raws))
	for _, raw := range raws {
		p, err := Decode(raw)
		if err != nil {
			return nil, err
		}
		if err := s.reveal(&p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(products); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL); err != nil {
				slog.WarnContext(ctx, "listing cache write failed", "key", cacheKey, "error", err)
			}
		}
	}
	return products, nil
}

func (s *Service) reveal(p *Product) error {
	if p.SupplierEmail == "" || s.cipher == nil {
		return nil
	}
	plain, err := s.cipher.DecryptString(p.SupplierEmail)
	if err != nil {
		return fmt.Errorf("catalog: decrypt supplier email for %s: %w", p.ID, err)
	}
	p.SupplierEmail = plain
	return nil
}

func (s *Service) listingCacheKey(category string) string {
	if s.cache == nil {
		return ""
	}
	if category == "" {
		return s.cache.GenerateKey("products", "all")
	}
	return s.cache.GenerateKey("products", "cat:"+category)
}

func (s *Service) invalidateListings(ctx context.Context, category string) {
	if s.cache == nil {
		return
	}
	keys := []string{s.listingCacheKey(""), s.listingCacheKey(category)}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		slog.WarnContext(ctx, "listing cache invalidation failed", "error", err)
	}
}
