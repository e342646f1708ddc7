package catalog

import (
	"bufio"
	"context"
	"os"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/procurement-portal/internal/domain/product"
)

const maxLineBytes = 1 << 20

// Sink stores decoded products. It is called from several goroutines.
type Sink interface {
	Upsert(ctx context.Context, products []product.Product) error
}

// Config tunes an Importer. Zero values select the defaults.
type Config struct {
	BatchSize         int
	ExpectedRecords   uint
	FalsePositiveRate float64
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.ExpectedRecords == 0 {
		c.ExpectedRecords = 1_000_000
	}
	if c.FalsePositiveRate <= 0 {
		c.FalsePositiveRate = 0.001
	}
	return c
}

// Stats summarizes an import run.
type Stats struct {
	Files    int
	Records  int
	Rejected int
	Written  int
	// Duplicates counts codes present in more than one file.
	Duplicates int
}

// Importer loads gzip-compressed JSON-lines product files into a Sink.
//
// Files are scanned concurrently. Codes that occur in several files are
// resolved deterministically: the file listed last wins. Cross-file
// collisions are found with one bloom filter per file, so only colliding
// candidates are held in memory.
type Importer struct {
	sink Sink
	lg   *zap.Logger
	cfg  Config
}

// NewImporter creates an Importer writing to sink.
func NewImporter(sink Sink, lg *zap.Logger, cfg Config) *Importer {
	return &Importer{sink: sink, lg: lg, cfg: cfg.withDefaults()}
}

// fileScan is the per-file outcome of the write pass.
type fileScan struct {
	stats Stats
	held  map[string]product.Product
}

// Import runs both passes over files and writes every valid record.
func (im *Importer) Import(ctx context.Context, files []string) (Stats, error) {
	im.lg.Info("Building code filters", zap.Int("files", len(files)))
	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return Stats{}, errors.Wrap(err, "build filters")
	}

	im.lg.Info("Writing products")
	scans := make([]fileScan, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		g.Go(func() error {
			scan, err := im.writeFile(gctx, i, files[i], filters)
			if err != nil {
				return errors.Wrapf(err, "import %s", files[i])
			}
			scans[i] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	total := Stats{Files: len(files)}
	for _, s := range scans {
		total.Records += s.stats.Records
		total.Rejected += s.stats.Rejected
		total.Written += s.stats.Written
	}

	written, dups, err := im.resolveHeld(ctx, scans)
	if err != nil {
		return total, errors.Wrap(err, "write duplicated codes")
	}
	total.Written += written
	total.Duplicates = dups

	im.lg.Info("Import finished",
		zap.Int("records", total.Records),
		zap.Int("written", total.Written),
		zap.Int("rejected", total.Rejected),
		zap.Int("duplicates", total.Duplicates),
	)
	return total, nil
}

func (im *Importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(im.cfg.ExpectedRecords, im.cfg.FalsePositiveRate)
			err := streamFile(ctx, path, func(_ int, line []byte) error {
				if p, err := DecodeProduct(jx.DecodeBytes(line)); err == nil {
					f.AddString(p.Code)
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// writeFile upserts the records of one file whose codes no other file can
// contain and holds back the rest.
func (im *Importer) writeFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (fileScan, error) {
	scan := fileScan{held: map[string]product.Product{}}
	batch := make([]product.Product, 0, im.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.sink.Upsert(ctx, batch); err != nil {
			return err
		}
		scan.stats.Written += len(batch)
		batch = make([]product.Product, 0, im.cfg.BatchSize)
		return nil
	}

	err := streamFile(ctx, path, func(lineNo int, line []byte) error {
		scan.stats.Records++
		p, err := DecodeProduct(jx.DecodeBytes(line))
		if err != nil {
			scan.stats.Rejected++
			im.lg.Warn("Skipping record",
				zap.String("file", path),
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			return nil
		}
		if seenElsewhere(p.Code, idx, filters) {
			scan.held[p.Code] = p
			return nil
		}
		batch = append(batch, p)
		if len(batch) >= im.cfg.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return scan, err
	}
	if err := flush(); err != nil {
		return scan, err
	}
	return scan, nil
}

func seenElsewhere(code string, idx int, filters []*bloom.BloomFilter) bool {
	for j, f := range filters {
		if j != idx && f.TestString(code) {
			return true
		}
	}
	return false
}

// resolveHeld merges held-back records in file order and writes them. It
// returns the number written and how many codes really came from more than
// one file.
func (im *Importer) resolveHeld(ctx context.Context, scans []fileScan) (written, duplicates int, err error) {
	merged := map[string]product.Product{}
	sources := map[string]int{}
	// Later files overwrite earlier ones.
	for _, s := range scans {
		for code, p := range s.held {
			merged[code] = p
			sources[code]++
		}
	}
	for _, n := range sources {
		if n > 1 {
			duplicates++
		}
	}

	codes := make([]string, 0, len(merged))
	for code := range merged {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	for chunk := range slices.Chunk(codes, im.cfg.BatchSize) {
		batch := make([]product.Product, len(chunk))
		for i, code := range chunk {
			batch[i] = merged[code]
		}
		if err := im.sink.Upsert(ctx, batch); err != nil {
			return written, duplicates, err
		}
		written += len(batch)
	}
	return written, duplicates, nil
}

// streamFile calls fn with each non-empty line of a gzip-compressed file.
func streamFile(ctx context.Context, path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
