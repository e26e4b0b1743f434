package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/luxe-store/internal/domain/product"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineBytes  = 1 << 20
	// maxFeeds bounds the feed bitmask width.
	maxFeeds = bits.UintSize
)

// importPlan maps every product id found in more than one feed to the index
// of the feed whose copy is imported.
type importPlan struct {
	owner map[string]int
}

// keep reports whether the copy of id read from feed idx should be written.
func (p importPlan) keep(id string, idx int) bool {
	owner, dup := p.owner[id]
	return !dup || owner == idx
}

// planImport finds ids present in two or more feeds. Pass 1 builds one bloom
// filter per feed; pass 2 re-reads each feed and keeps ids that test positive
// in another feed's filter. Only ids confirmed by two feeds are duplicates,
// so filter false positives never drop a product.
func planImport(ctx context.Context, feeds []string) (importPlan, error) {
	if len(feeds) > maxFeeds {
		return importPlan{}, errors.Errorf("at most %d feeds are supported", maxFeeds)
	}

	slog.Info("pass 1: building bloom filters", slog.Int("feeds", len(feeds)))

	filters := make([]*bloom.BloomFilter, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			n, err := streamFeed(gctx, path, func(p *product.Product) error {
				filter.AddString(p.ID)
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete", slog.String("feed", path), slog.Int("products", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return importPlan{}, err
	}

	slog.Info("pass 2: finding duplicate ids")

	candidates := make([]map[string]uint, len(feeds))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			found := make(map[string]uint)
			bit := uint(1) << uint(i)
			_, err := streamFeed(gctx, path, func(p *product.Product) error {
				for j, f := range filters {
					if j != i && f.TestString(p.ID) {
						found[p.ID] |= bit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s for duplicates", path)
			}
			candidates[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return importPlan{}, err
	}

	merged := make(map[string]uint)
	for _, c := range candidates {
		for id, mask := range c {
			merged[id] |= mask
		}
	}

	plan := importPlan{owner: make(map[string]int)}
	for id, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			plan.owner[id] = bits.Len(mask) - 1
		}
	}
	return plan, nil
}

type upserter interface {
	Upsert(ctx context.Context, p *product.Product) error
}

type importStats struct {
	written  int
	shadowed int
}

// importFeeds writes every product the plan keeps. Feeds are written
// concurrently, at most workers at a time.
func importFeeds(ctx context.Context, repo upserter, feeds []string, plan importPlan, workers int) (importStats, error) {
	var written, shadowed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range feeds {
		g.Go(func() error {
			_, err := streamFeed(gctx, path, func(p *product.Product) error {
				if !plan.keep(p.ID, i) {
					shadowed.Add(1)
					return nil
				}
				if err := p.Validate(); err != nil {
					return errors.Wrapf(err, "product %s", p.ID)
				}
				if err := repo.Upsert(gctx, p); err != nil {
					return errors.Wrapf(err, "upsert product %s", p.ID)
				}
				if n := written.Add(1); n%progressEvery == 0 {
					slog.Info("write progress", slog.Int64("written", n))
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "import %s", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return importStats{}, err
	}

	return importStats{written: int(written.Load()), shadowed: int(shadowed.Load())}, nil
}

// streamFeed opens a gzip-compressed NDJSON feed and calls fn for each
// product. Blank lines are skipped. It returns the number of products read.
func streamFeed(ctx context.Context, path string, fn func(p *product.Product) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var n, line int
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return n, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var p product.Product
		if err := p.UnmarshalJSON(raw); err != nil {
			return n, errors.Wrapf(err, "line %d", line)
		}
		if p.ID == "" {
			return n, errors.Errorf("line %d: product id is required", line)
		}
		if err := fn(&p); err != nil {
			return n, err
		}
		n++
	}

	if err := scanner.Err(); err != nil {
		return n, errors.Wrapf(err, "scan %s", path)
	}

	return n, nil
}
