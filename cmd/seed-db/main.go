// Command seed-db loads a demo catalog, shoppers, promotions, an admin API
// key and sample carts.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/auth"
	"github.com/thangnvgch211384/fshoemate/internal/domain/inventory"
	"github.com/thangnvgch211384/fshoemate/internal/domain/promotion"
	"github.com/thangnvgch211384/fshoemate/internal/domain/user"
	"github.com/thangnvgch211384/fshoemate/internal/storage/postgres"
	"github.com/thangnvgch211384/fshoemate/internal/storage/redis"
)

type options struct {
	databaseURL string
	redisURL    string
	apiKey      string
	pepper      string
	cartTTL     time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.redisURL, "redis-url", "", "Redis URL for sample carts; skipped when empty (or REDIS_URL env)")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or FSHOE_SEED_API_KEY env)")
	flag.StringVar(&opts.pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or FSHOE_API_KEY_PEPPER env)")
	flag.DurationVar(&opts.cartTTL, "cart-ttl", 720*time.Hour, "lifetime of seeded carts")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.redisURL = orEnv(opts.redisURL, "REDIS_URL")
	opts.apiKey = orEnv(opts.apiKey, "FSHOE_SEED_API_KEY")
	opts.pepper = orEnv(opts.pepper, "FSHOE_API_KEY_PEPPER")

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		lg.Fatal("API key is required: set --api-key or FSHOE_SEED_API_KEY")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	variants := postgres.NewVariantRepository(pool)
	for _, p := range catalog() {
		if err := variants.UpsertProduct(ctx, p); err != nil {
			return err
		}
		lg.Info("Upserted product", zap.String("id", p.ID), zap.Int("variants", len(p.Variants)))
	}

	users := postgres.NewUserRepository(pool)
	for _, u := range shoppers {
		if err := users.Upsert(ctx, u); err != nil {
			return err
		}
	}
	lg.Info("Upserted users", zap.Int("count", len(shoppers)))

	if err := postgres.NewPromotionRepository(pool).Upsert(ctx, promotions()...); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	lg.Info("Upserted promotions")

	key := auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.Hash([]byte(opts.pepper), opts.apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeOrdersWrite, auth.ScopeAnalyticsRead},
	}
	if err := postgres.NewAPIKeyRepository(pool).Save(ctx, key); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	lg.Info("Upserted API key", zap.String("id", key.ID), zap.Strings("scopes", key.Scopes))

	if opts.redisURL == "" {
		lg.Info("No Redis URL, skipping sample carts")
		return nil
	}
	return seedCarts(ctx, lg, opts)
}

func seedCarts(ctx context.Context, lg *zap.Logger, opts options) error {
	rdb, err := redis.NewClient(opts.redisURL)
	if err != nil {
		return errors.Wrap(err, "connect to redis")
	}
	defer func() { _ = rdb.Close() }()

	carts := redis.NewCartStore(rdb, opts.cartTTL)
	for userID, lines := range sampleCarts {
		if err := carts.Clear(ctx, userID); err != nil {
			return errors.Wrapf(err, "reset cart of %s", userID)
		}
		for variantID, qty := range lines {
			if err := carts.Add(ctx, userID, variantID, qty); err != nil {
				return errors.Wrapf(err, "add %s to cart of %s", variantID, userID)
			}
		}
		lg.Info("Seeded cart", zap.String("user_id", userID), zap.Int("lines", len(lines)))
	}
	return nil
}

var shoppers = []user.User{
	{ID: "u-lan", Name: "Nguyen Lan", Email: "lan@example.com", Phone: "0901000001", Address: "12 Le Loi, District 1, HCMC"},
	{ID: "u-minh", Name: "Tran Minh", Email: "minh@example.com", Phone: "0901000002", Address: "45 Tran Hung Dao, Hanoi"},
}

var sampleCarts = map[string]map[string]int{
	"u-lan":  {"air-runner-42-black": 1, "city-walk-38-white": 2},
	"u-minh": {"trail-pro-43-olive": 1},
}

type model struct {
	id, name, brand string
	price           int64
	sizes           []string
	colors          []string
}

var models = []model{
	{"air-runner", "Air Runner", "Fshoe", 1_250_000, []string{"40", "41", "42", "43"}, []string{"black", "white"}},
	{"city-walk", "City Walk", "Fshoe", 890_000, []string{"36", "37", "38", "39"}, []string{"white", "beige"}},
	{"trail-pro", "Trail Pro", "Mountain Co", 1_690_000, []string{"41", "42", "43", "44"}, []string{"olive"}},
	{"court-classic", "Court Classic", "Retro Lab", 990_000, []string{"38", "39", "40", "41", "42"}, []string{"white", "navy"}},
}

// catalog expands each model into one variant per size and color.
func catalog() []postgres.Product {
	out := make([]postgres.Product, 0, len(models))
	for _, m := range models {
		p := postgres.Product{ID: m.id, Name: m.name, Brand: m.brand, Image: "/images/" + m.id + ".jpg"}
		for _, color := range m.colors {
			for i, size := range m.sizes {
				p.Variants = append(p.Variants, inventory.Variant{
					ID:    strings.Join([]string{m.id, size, color}, "-"),
					Size:  size,
					Color: color,
					Image: "/images/" + m.id + "-" + color + ".jpg",
					Price: decimal.NewFromInt(m.price),
					Stock: 5 + 5*i,
				})
			}
		}
		out = append(out, p)
	}
	return out
}

func promotions() []promotion.Rule {
	return []promotion.Rule{
		{
			Code:         "WELCOME10",
			DiscountType: promotion.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			Description:  "10% off your first order",
			MaxDiscount:  decimal.NewFromInt(200_000),
		},
		{
			Code:         "FREESHIP30",
			DiscountType: promotion.DiscountFixed,
			Value:        decimal.NewFromInt(30_000),
			Description:  "30k off, the price of standard shipping",
		},
		{
			Code:         "PAIRUP",
			DiscountType: promotion.DiscountFreeLowest,
			MinItems:     2,
			Description:  "Buy two pairs, the cheaper one is free",
			MaxUses:      100,
		},
	}
}
