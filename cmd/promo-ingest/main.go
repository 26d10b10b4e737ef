// Command promo-ingest bulk-loads single-use promotion codes from gzipped
// partner code lists. A code is issued only when it appears in at least
// --min-files of the lists.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/promotion"
	"github.com/thangnvgch211384/fshoemate/internal/storage/postgres"
)

type options struct {
	pattern     string
	databaseURL string
	minFiles    int
	capacity    uint
	batch       int

	discountType string
	value        string
	description  string
	maxUses      int
}

func main() {
	var opts options
	flag.StringVar(&opts.pattern, "files", "data/promo*.gz", "glob of gzipped code lists, one code per line")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.minFiles, "min-files", 2, "lists a code must appear in")
	flag.UintVar(&opts.capacity, "capacity", 10_000_000, "expected codes per list, sizes the bloom filters")
	flag.IntVar(&opts.batch, "batch", 1000, "promotions per database batch")
	flag.StringVar(&opts.discountType, "type", string(promotion.DiscountPercentage), "discount type: percentage, fixed or free_lowest")
	flag.StringVar(&opts.value, "value", "10", "discount value")
	flag.StringVar(&opts.description, "description", "Partner promo code", "promotion description")
	flag.IntVar(&opts.maxUses, "max-uses", 1, "uses per code, 0 for unlimited")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Promo ingest failed", zap.Error(err))
	}
	lg.Info("Promo ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	files, err := filepath.Glob(opts.pattern)
	if err != nil {
		return errors.Wrap(err, "glob code lists")
	}
	sort.Strings(files)
	if len(files) < opts.minFiles {
		return errors.Errorf("found %d code lists matching %q, need at least %d", len(files), opts.pattern, opts.minFiles)
	}

	template, err := opts.rule()
	if err != nil {
		return err
	}

	lg.Info("Scanning code lists", zap.Strings("files", files), zap.Int("min_files", opts.minFiles))
	codes, err := sharedCodes(ctx, lg, files, opts.minFiles, opts.capacity)
	if err != nil {
		return err
	}
	lg.Info("Codes selected", zap.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewPromotionRepository(pool)
	for start := 0; start < len(codes); start += opts.batch {
		end := min(start+opts.batch, len(codes))
		rules := make([]promotion.Rule, 0, end-start)
		for _, code := range codes[start:end] {
			r := template
			r.Code = code
			rules = append(rules, r)
		}
		if err := repo.Upsert(ctx, rules...); err != nil {
			return errors.Wrapf(err, "write codes %d-%d", start, end)
		}
		lg.Info("Write progress", zap.Int("written", end), zap.Int("total", len(codes)))
	}
	return nil
}

// rule builds the promotion every ingested code receives.
func (o options) rule() (promotion.Rule, error) {
	typ := promotion.DiscountType(o.discountType)
	switch typ {
	case promotion.DiscountPercentage, promotion.DiscountFixed, promotion.DiscountFreeLowest:
	default:
		return promotion.Rule{}, errors.Errorf("unknown discount type %q", o.discountType)
	}
	value, err := decimal.NewFromString(o.value)
	if err != nil {
		return promotion.Rule{}, errors.Wrap(err, "parse discount value")
	}
	if value.IsNegative() {
		return promotion.Rule{}, errors.New("discount value must not be negative")
	}
	return promotion.Rule{
		DiscountType: typ,
		Value:        value,
		Description:  o.description,
		MaxUses:      o.maxUses,
	}, nil
}
