package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/luxe-store/internal/domain/product"
)

// --- Mock implementations ---

type memRepo struct {
	mu    sync.Mutex
	items map[string]product.Product
}

func (r *memRepo) Upsert(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items == nil {
		r.items = make(map[string]product.Product)
	}
	r.items[p.ID] = *p
	return nil
}

// --- Helpers ---

func line(id, name string) string {
	return fmt.Sprintf(`{"id":%q,"name":%q,"price":"10.00","category":"Bags","images":["%s.jpg"]}`, id, name, id)
}

func writeFeed(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

// --- Tests ---

func TestStreamFeed(t *testing.T) {
	dir := t.TempDir()
	path := writeFeed(t, dir, "a.ndjson.gz", line("p1", "One"), "", line("p2", "Two"))

	var ids []string
	n, err := streamFeed(context.Background(), path, func(p *product.Product) error {
		ids = append(ids, p.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	bad := writeFeed(t, dir, "bad.ndjson.gz", line("p1", "One"), `{"name":"no id"}`)
	_, err = streamFeed(context.Background(), bad, func(*product.Product) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestPlanImport(t *testing.T) {
	dir := t.TempDir()
	feeds := []string{
		writeFeed(t, dir, "1.ndjson.gz", line("p1", "Old"), line("p2", "Only first")),
		writeFeed(t, dir, "2.ndjson.gz", line("p1", "Newer"), line("p3", "Only second")),
		writeFeed(t, dir, "3.ndjson.gz", line("p1", "Newest"), line("p4", "Only third")),
	}

	plan, err := planImport(context.Background(), feeds)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2}, plan.owner)

	assert.False(t, plan.keep("p1", 0))
	assert.True(t, plan.keep("p1", 2))
	assert.True(t, plan.keep("p2", 0))
}

func TestImportFeeds(t *testing.T) {
	dir := t.TempDir()
	feeds := []string{
		writeFeed(t, dir, "1.ndjson.gz", line("p1", "Old"), line("p2", "Two")),
		writeFeed(t, dir, "2.ndjson.gz", line("p1", "New"), line("p3", "Three")),
	}

	plan, err := planImport(context.Background(), feeds)
	require.NoError(t, err)

	repo := &memRepo{}
	stats, err := importFeeds(context.Background(), repo, feeds, plan, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.written)
	assert.Equal(t, 1, stats.shadowed)
	require.Len(t, repo.items, 3)
	assert.Equal(t, "New", repo.items["p1"].Name)
}

func TestImportFeeds_InvalidProduct(t *testing.T) {
	dir := t.TempDir()
	feeds := []string{
		writeFeed(t, dir, "1.ndjson.gz", `{"id":"p9","name":"No category","price":"5","images":["x.jpg"]}`),
	}

	_, err := importFeeds(context.Background(), &memRepo{}, feeds, importPlan{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product p9")
}
