package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xenking/procurement-portal/internal/catalog"
	"github.com/xenking/procurement-portal/internal/domain/auth"
	"github.com/xenking/procurement-portal/internal/handler"
	"github.com/xenking/procurement-portal/internal/repository"
)

type options struct {
	databaseURL  string
	productsFile string
	pepper       string
	userKey      string
	adminKey     string
	companyID    string
	units        string
}

func main() {
	_ = godotenv.Load()

	var o options
	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&o.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&o.pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PORTAL_API_KEY_PEPPER env)")
	flag.StringVar(&o.userKey, "user-key", "", "API key for the demo employee (or PORTAL_SEED_USER_KEY env)")
	flag.StringVar(&o.adminKey, "admin-key", "", "API key for the demo administrator (or PORTAL_SEED_ADMIN_KEY env)")
	flag.StringVar(&o.companyID, "company", "acme", "company the delivery units belong to")
	flag.StringVar(&o.units, "units", "HQ,NORTH,SOUTH", "comma-separated delivery units")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	o.databaseURL = firstNonEmpty(o.databaseURL, os.Getenv("PORTAL_DATABASE_URL"), os.Getenv("DATABASE_URL"))
	o.pepper = firstNonEmpty(o.pepper, os.Getenv("PORTAL_API_KEY_PEPPER"))
	o.userKey = firstNonEmpty(o.userKey, os.Getenv("PORTAL_SEED_USER_KEY"))
	o.adminKey = firstNonEmpty(o.adminKey, os.Getenv("PORTAL_SEED_ADMIN_KEY"))
	if o.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if o.pepper == "" || o.userKey == "" || o.adminKey == "" {
		lg.Fatal("API key pepper, user key and admin key are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, o); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, o options) error {
	lg.Info("Connecting to database")
	pool, err := repository.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data, err := os.ReadFile(o.productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	products, err := catalog.DecodeProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products file")
	}
	if err := repository.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	lg.Info("Upserted products", zap.Int("count", len(products)))

	var units []string
	for _, u := range strings.Split(o.units, ",") {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	if err := repository.NewUnitRepository(pool).Add(ctx, o.companyID, units...); err != nil {
		return errors.Wrap(err, "seed delivery units")
	}
	lg.Info("Registered delivery units", zap.String("company", o.companyID), zap.Strings("units", units))

	keys := repository.NewAPIKeyRepository(pool)
	for _, info := range []auth.APIKeyInfo{
		{
			ID:       "demo-user",
			KeyHash:  handler.HashKey([]byte(o.pepper), o.userKey),
			Name:     "Demo employee",
			UserID:   "demo-user",
			UserName: "Demo Employee",
			TaxID:    "00000000191",
		},
		{
			ID:       "demo-admin",
			KeyHash:  handler.HashKey([]byte(o.pepper), o.adminKey),
			Name:     "Demo administrator",
			Scopes:   []string{auth.ScopeAdmin},
			UserID:   "demo-admin",
			UserName: "Demo Administrator",
			TaxID:    "00000000272",
		},
	} {
		if err := keys.Save(ctx, info); err != nil {
			return errors.Wrapf(err, "seed api key %s", info.ID)
		}
		lg.Info("Upserted API key", zap.String("id", info.ID), zap.Bool("admin", info.Actor().Admin))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
