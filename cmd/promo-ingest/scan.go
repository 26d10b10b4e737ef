package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	bloomFPR      = 0.001
	ctxCheckEvery = 100_000
	minCodeLen    = 6
	maxCodeLen    = 16
)

// normalize upper-cases a raw line and reports whether it is a plausible
// code. Promotion lookup is case-insensitive, so case variants collapse.
func normalize(line string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(line))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", false
		}
	}
	return code, true
}

// sharedCodes returns, sorted, the codes present in at least minFiles of
// files. The first pass builds one bloom filter per file; the second pass
// tests every code against the other files' filters and tracks membership
// in a bitmask, so false positives can only add files, never drop codes.
func sharedCodes(ctx context.Context, lg *zap.Logger, files []string, minFiles int, capacity uint) ([]string, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d files supported", bits.UintSize)
	}

	filters := make([]*bloom.BloomFilter, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(capacity, bloomFPR)
			n, err := scanCodes(gctx, path, func(code string) { f.AddString(code) })
			if err != nil {
				return errors.Wrap(err, "build filter")
			}
			lg.Info("Filter built", zap.String("file", path), zap.Uint64("codes", n))
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	masks := make([]map[string]uint, len(files))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			own := uint(1) << uint(i)
			found := make(map[string]uint)
			_, err := scanCodes(gctx, path, func(code string) {
				mask := own
				for j, f := range filters {
					if j != i && f.TestString(code) {
						mask |= uint(1) << uint(j)
					}
				}
				if bits.OnesCount(mask) >= minFiles {
					found[code] |= mask
				}
			})
			if err != nil {
				return errors.Wrap(err, "find candidates")
			}
			masks[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A candidate is confirmed only by files that actually contain it.
	confirmed := make(map[string]uint)
	for i, found := range masks {
		for code := range found {
			confirmed[code] |= uint(1) << uint(i)
		}
	}
	var out []string
	for code, mask := range confirmed {
		if bits.OnesCount(mask) >= minFiles {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

// scanCodes streams a gzipped list and calls fn for every valid code.
func scanCodes(ctx context.Context, path string, fn func(code string)) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var n uint64
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		code, ok := normalize(sc.Text())
		if !ok {
			continue
		}
		n++
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		fn(code)
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrapf(err, "scan %s", path)
	}
	return n, ctx.Err()
}
