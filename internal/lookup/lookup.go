// Package lookup resolves external barcodes (EAN, UPC, ISBN) against public
// product catalogs.
package lookup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/barcode"
	"go-inventory-tree/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MinBarcodeLength is the shortest code worth sending to a catalog.
const MinBarcodeLength = 8

type Product struct {
	Barcode     string  `json:"barcode"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Brand       *string `json:"brand,omitempty"`
	Category    *string `json:"category,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	Source      string  `json:"source"`
	Confidence  float64 `json:"confidence"`
}

// Source is one external catalog. Lookup returns nil, nil when the catalog
// has no entry for the code.
type Source interface {
	Name() string
	// Accepts filters codes the catalog cannot know, e.g. non-ISBNs for a
	// book catalog.
	Accepts(code string) bool
	Lookup(ctx context.Context, code string) (*Product, error)
}

type ProductLookupService interface {
	LookupAll(ctx context.Context, code string) ([]Product, error)
	LookupBest(ctx context.Context, code string) (*Product, error)
}

type service struct {
	sources []Source
	cache   Cache
	timeout time.Duration
}

// NewService queries sources concurrently. The order of sources is the
// tie-break order when two products share a confidence.
func NewService(sources []Source, cache Cache, timeout time.Duration) ProductLookupService {
	if cache == nil {
		cache = NopCache{}
	}
	return &service{sources: sources, cache: cache, timeout: timeout}
}

func (s *service) LookupAll(ctx context.Context, code string) ([]Product, error) {
	clean := barcode.Clean(code)
	if len(clean) < MinBarcodeLength {
		return nil, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("Barcode must be at least %d characters", MinBarcodeLength)).
			WithParams(map[string]interface{}{"field": "barcode", "value": code})
	}

	if cached, ok := s.cache.Get(ctx, clean); ok {
		return cached, nil
	}

	sources := s.ordered(clean)
	found := make([]*Product, len(sources))
	var (
		mu     sync.Mutex
		failed bool
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()
			product, err := src.Lookup(callCtx, clean)
			if err != nil {
				// one catalog failing must not fail the others
				logger.Warn("product lookup failed",
					zap.String("source", src.Name()),
					zap.String("barcode", clean),
					zap.Error(err))
				mu.Lock()
				failed = true
				mu.Unlock()
				return nil
			}
			mu.Lock()
			found[i] = product
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	products := make([]Product, 0, len(found))
	for _, p := range found {
		if p != nil {
			products = append(products, *p)
		}
	}
	// stable: equal confidence keeps source order
	sort.SliceStable(products, func(a, b int) bool {
		return products[a].Confidence > products[b].Confidence
	})

	// a partial answer is served but not remembered
	if !failed {
		s.cache.Set(ctx, clean, products)
	}
	return products, nil
}

func (s *service) LookupBest(ctx context.Context, code string) (*Product, error) {
	products, err := s.LookupAll(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	best := products[0]
	return &best, nil
}

// ordered returns the sources that accept code. For ISBN-shaped codes the
// ISBN-specific sources move to the front.
func (s *service) ordered(code string) []Source {
	var isbnFirst, rest []Source
	isISBN := barcode.IsISBN(code)
	for _, src := range s.sources {
		if !src.Accepts(code) {
			continue
		}
		if isISBN && isISBNSource(src) {
			isbnFirst = append(isbnFirst, src)
			continue
		}
		rest = append(rest, src)
	}
	return append(isbnFirst, rest...)
}

// isbnSource is implemented by catalogs that only know books.
type isbnSource interface {
	ISBNOnly() bool
}

func isISBNSource(src Source) bool {
	s, ok := src.(isbnSource)
	return ok && s.ISBNOnly()
}
