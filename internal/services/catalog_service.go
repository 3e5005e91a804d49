package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/splat-labs/storefront/internal/platform/cache"
)

const (
	profileEndpoint  = "profile"
	productsEndpoint = "products"

	tagCatalog  = "catalog"
	tagProducts = "products"
	tagStore    = "store"
)

// CatalogServiceDeps wires the dependencies required by the catalog service.
type CatalogServiceDeps struct {
	Commerce commerceAPI
	Cache    cache.Store
	TTL      time.Duration
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	commerce commerceAPI
	cache    cache.Store
	ttl      time.Duration
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCatalogService constructs a CatalogService validating required dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Commerce == nil {
		return nil, errors.New("catalog service: commerce client is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("catalog service: cache store is required")
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		commerce: deps.Commerce,
		cache:    deps.Cache,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

// Products returns the raw product listing, serving from cache within the
// revalidation window.
func (s *catalogService) Products(ctx context.Context, params url.Values) ([]byte, error) {
	key := productsEndpoint
	if len(params) > 0 {
		key += "?" + params.Encode()
	}
	return s.readThrough(ctx, key, []string{tagCatalog, tagProducts}, func() ([]byte, error) {
		return s.commerce.Get(ctx, productsEndpoint, params)
	})
}

// Store returns the raw store profile.
func (s *catalogService) Store(ctx context.Context) ([]byte, error) {
	return s.readThrough(ctx, "store", []string{tagStore}, func() ([]byte, error) {
		return s.commerce.Get(ctx, profileEndpoint, nil)
	})
}

// Product returns the raw product record matching the given slug.
func (s *catalogService) Product(ctx context.Context, slug string) ([]byte, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: product slug is required", ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("slug", slug)
	return s.readThrough(ctx, "product:"+slug, []string{tagCatalog, tagProducts}, func() ([]byte, error) {
		return s.commerce.Get(ctx, productsEndpoint, params)
	})
}

// Invalidate drops cached entries by tag or by the public path they back.
func (s *catalogService) Invalidate(ctx context.Context, cmd InvalidateCommand) error {
	tag := strings.TrimSpace(cmd.Tag)
	path := strings.TrimSpace(cmd.Path)
	if tag == "" && path == "" {
		return fmt.Errorf("%w: tag or path is required", ErrInvalidInput)
	}

	if tag != "" {
		if err := s.cache.InvalidateTag(ctx, tag); err != nil {
			return fmt.Errorf("catalog: invalidate tag %s: %w", tag, err)
		}
		s.logger(ctx, "catalog.cache.invalidated", map[string]any{"tag": tag})
	}

	if path != "" {
		if err := s.invalidatePath(ctx, path); err != nil {
			return err
		}
		s.logger(ctx, "catalog.cache.invalidated", map[string]any{"path": path})
	}

	return nil
}

func (s *catalogService) invalidatePath(ctx context.Context, path string) error {
	trimmed := strings.Trim(path, "/")
	switch {
	case trimmed == "products":
		return s.cache.InvalidateTag(ctx, tagProducts)
	case trimmed == "store":
		return s.cache.InvalidateKey(ctx, "store")
	case strings.HasPrefix(trimmed, "store/"):
		slug := strings.TrimPrefix(trimmed, "store/")
		return s.cache.InvalidateKey(ctx, "product:"+slug)
	default:
		return fmt.Errorf("%w: unknown path %q", ErrInvalidInput, path)
	}
}

func (s *catalogService) readThrough(ctx context.Context, key string, tags []string, fetch func() ([]byte, error)) ([]byte, error) {
	if value, err := s.cache.Get(ctx, key); err == nil {
		return value, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		// A broken cache backend must not take catalog reads down.
		s.logger(ctx, "catalog.cache.error", map[string]any{"key": key, "error": err.Error()})
	}

	body, err := fetch()
	if err != nil {
		return nil, translateCommerceError(err)
	}

	if err := s.cache.Set(ctx, key, body, tags, s.ttl); err != nil {
		s.logger(ctx, "catalog.cache.error", map[string]any{"key": key, "error": err.Error()})
	}

	return body, nil
}
