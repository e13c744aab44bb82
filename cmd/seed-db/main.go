package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pharmacy-pos/internal/domain/auth"
	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
	"github.com/xenking/pharmacy-pos/internal/storage/postgres"
)

const upsertWorkers = 4

type options struct {
	databaseURL string
	catalog     string
	jwtSecret   string
	tokenTTL    time.Duration
	userID      int64
	role        string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalog, "catalog", "", "medicine catalog JSON, optionally .gz (default: embedded catalog)")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "HMAC secret for the printed token (or PHARMACY_JWT_SECRET env)")
	flag.DurationVar(&opts.tokenTTL, "token-ttl", 12*time.Hour, "lifetime of the printed token")
	flag.Int64Var(&opts.userID, "user-id", 1, "user id the printed token acts as")
	flag.StringVar(&opts.role, "role", "cashier", "role claim of the printed token")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("PHARMACY_DATABASE_URL")
	}
	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.jwtSecret == "" {
		opts.jwtSecret = os.Getenv("PHARMACY_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		cancel()
		_ = lg.Sync()
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	data, err := readCatalog(opts.catalog)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}
	meds, err := parseCatalog(data)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMedicines(ctx, lg, postgres.NewMedicineRepository(pool), meds); err != nil {
		return errors.Wrap(err, "seed medicines")
	}

	if opts.jwtSecret == "" {
		lg.Warn("No JWT secret configured, skipping token")
		return nil
	}
	return printToken(opts)
}

func seedMedicines(ctx context.Context, lg *zap.Logger, repo medicine.Repository, meds []medicine.Medicine) error {
	lg.Info("Upserting medicines", zap.Int("count", len(meds)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)
	for i := range meds {
		m := &meds[i]
		g.Go(func() error {
			if err := repo.Upsert(ctx, m); err != nil {
				return errors.Wrapf(err, "upsert %s", m.DisplayName())
			}
			lg.Debug("Upserted medicine", zap.Int64("id", m.ID), zap.String("name", m.DisplayName()))
			return nil
		})
	}
	return g.Wait()
}

func printToken(opts options) error {
	tokens, err := auth.NewTokens([]byte(opts.jwtSecret), opts.tokenTTL)
	if err != nil {
		return errors.Wrap(err, "create tokens")
	}
	token, err := tokens.Issue(auth.Actor{UserID: opts.userID, Role: opts.role})
	if err != nil {
		return errors.Wrap(err, "issue token")
	}
	fmt.Println(token)
	return nil
}
