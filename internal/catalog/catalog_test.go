package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/procurement-portal/internal/domain/product"
	"github.com/xenking/procurement-portal/internal/domain/weight"
)

// --- Helpers ---

type memSink struct {
	mu       sync.Mutex
	products map[string]product.Product
	err      error
}

func newMemSink() *memSink {
	return &memSink{products: map[string]product.Product{}}
}

func (s *memSink) Upsert(_ context.Context, products []product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, p := range products {
		s.products[p.Code] = p
	}
	return nil
}

func writeGz(t *testing.T, dir, name string, lines ...string) string {
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

func TestDecodeProduct(t *testing.T) {
	p, err := DecodeProduct(jx.DecodeStr(
		`{"code":" rice ","description":"Rice 2kg","price":"9.90","weight":2000,"weightUnit":"g","minimumQuantity":2,"tags":["x"]}`))
	require.NoError(t, err)
	assert.Equal(t, "RICE", p.Code)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("9.9")))
	assert.True(t, p.Weight.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, weight.Gram, p.WeightUnit)
	assert.Equal(t, 2, p.MinimumPurchaseQuantity)

	p, err = DecodeProduct(jx.DecodeStr(`{"code":"OIL","price":7.5,"weight":0.9,"weightUnit":2}`))
	require.NoError(t, err)
	assert.Equal(t, weight.Kilogram, p.WeightUnit)
}

func TestDecodeProduct_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		invalid bool
	}{
		{name: "missing code", input: `{"price":1,"weight":1,"weightUnit":"kg"}`, invalid: true},
		{name: "unknown unit", input: `{"code":"A","price":1,"weight":1,"weightUnit":"lb"}`, invalid: true},
		{name: "zero weight", input: `{"code":"A","price":1,"weight":0,"weightUnit":"kg"}`, invalid: true},
		{name: "negative price", input: `{"code":"A","price":-1,"weight":1,"weightUnit":"kg"}`, invalid: true},
		{name: "negative minimum", input: `{"code":"A","price":1,"weight":1,"weightUnit":"kg","minimumQuantity":-2}`, invalid: true},
		{name: "malformed price", input: `{"code":"A","price":"cheap","weight":1,"weightUnit":"kg"}`},
		{name: "not an object", input: `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProduct(jx.DecodeStr(tt.input))
			require.Error(t, err)
			assert.Equal(t, tt.invalid, errors.Is(err, ErrInvalidRecord))
		})
	}
}

func TestDecodeProducts(t *testing.T) {
	got, err := DecodeProducts([]byte(`[
		{"code":"A","price":1,"weight":1,"weightUnit":"kg"},
		{"code":"B","price":2,"weight":500,"weightUnit":"gram"}
	]`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[1].Code)

	_, err = DecodeProducts([]byte(`[{"code":"A","price":1,"weight":1,"weightUnit":"kg"},{"code":""}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
}

func TestImporter_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	first := writeGz(t, dir, "a.jsonl.gz",
		`{"code":"RICE","description":"old","price":9,"weight":2,"weightUnit":"kg"}`,
		`{"code":"BEANS","price":4,"weight":500,"weightUnit":"g"}`,
		`not json`,
		``,
		`{"code":"SALT","price":1,"weight":1,"weightUnit":"kg"}`,
	)
	second := writeGz(t, dir, "b.jsonl.gz",
		`{"code":"rice","description":"new","price":10,"weight":2,"weightUnit":"kg"}`,
		`{"code":"OIL","price":7.5,"weight":0.9,"weightUnit":"kg"}`,
		`{"code":"BAD","price":1,"weight":1,"weightUnit":"stone"}`,
	)

	sink := newMemSink()
	im := NewImporter(sink, zap.NewNop(), Config{BatchSize: 2, ExpectedRecords: 100})

	stats, err := im.Import(context.Background(), []string{first, second})
	require.NoError(t, err)

	assert.Equal(t, Stats{Files: 2, Records: 7, Rejected: 2, Written: 4, Duplicates: 1}, stats)
	require.Len(t, sink.products, 4)
	assert.Equal(t, "new", sink.products["RICE"].Description)
	assert.True(t, sink.products["OIL"].Weight.Equal(decimal.RequireFromString("0.9")))
	assert.Contains(t, sink.products, "BEANS")
	assert.Contains(t, sink.products, "SALT")
}

func TestImporter_SinkError(t *testing.T) {
	dir := t.TempDir()
	path := writeGz(t, dir, "a.jsonl.gz", `{"code":"A","price":1,"weight":1,"weightUnit":"kg"}`)

	sink := newMemSink()
	sink.err = errors.New("db down")
	_, err := NewImporter(sink, zap.NewNop(), Config{}).Import(context.Background(), []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestImporter_MissingFile(t *testing.T) {
	_, err := NewImporter(newMemSink(), zap.NewNop(), Config{}).
		Import(context.Background(), []string{filepath.Join(t.TempDir(), "missing.jsonl.gz")})
	require.Error(t, err)
}
