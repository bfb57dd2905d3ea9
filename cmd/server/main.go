package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/appideasfinder/backend/modules/account"
	"github.com/appideasfinder/backend/modules/admin"
	"github.com/appideasfinder/backend/modules/analysis"
	"github.com/appideasfinder/backend/modules/billing"
	"github.com/appideasfinder/backend/pkg/access"
	"github.com/appideasfinder/backend/pkg/bonus"
	"github.com/appideasfinder/backend/pkg/config"
	"github.com/appideasfinder/backend/pkg/email"
	"github.com/appideasfinder/backend/pkg/httpserver"
	"github.com/appideasfinder/backend/pkg/logger"
	"github.com/appideasfinder/backend/pkg/pg"
	"github.com/appideasfinder/backend/pkg/redis"
	"github.com/appideasfinder/backend/pkg/requestid"
	"github.com/appideasfinder/backend/pkg/session"
	"github.com/appideasfinder/backend/pkg/subscription"
	"github.com/appideasfinder/backend/pkg/usage"
)

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"production"`

	// PlansFile overrides the built-in plan catalog when set.
	PlansFile string `env:"PLANS_FILE"`

	// Paddle price IDs for the built-in catalog.
	PriceCoreMonthly  string `env:"PADDLE_PRICE_CORE_MONTHLY"`
	PriceCoreAnnual   string `env:"PADDLE_PRICE_CORE_ANNUAL"`
	PricePrimeMonthly string `env:"PADDLE_PRICE_PRIME_MONTHLY"`
	PricePrimeAnnual  string `env:"PADDLE_PRICE_PRIME_ANNUAL"`

	HTTP    httpserver.Config
	PG      pg.Config
	Redis   redis.Config
	Session session.Config
	Email   email.Config
	Paddle  subscription.PaddleConfig
	Grok    analysis.GrokConfig
	Billing billing.Config
	Account account.Config
	Admin   admin.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, "appideasfinder-api"),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close() //nolint:errcheck

	sessions := session.NewManager(cfg.Session, session.NewRedisStore(redisClient))

	mailer, err := newMailer(cfg.Email, log)
	if err != nil {
		return err
	}

	provider, err := subscription.NewPaddleProvider(cfg.Paddle)
	if err != nil {
		return err
	}

	usageStore := usage.NewPGStore(pool)
	subStore := subscription.NewPGStore(pool)
	bonusSvc := bonus.NewService(bonus.NewPGStore(pool), bonus.WithLogger(log))

	subs, err := subscription.NewService(ctx, catalogSource(cfg), provider, subStore, usageStore,
		subscription.WithLogger(log))
	if err != nil {
		return err
	}

	gate := access.NewGate(subs, usageStore, bonusSvc, access.WithLogger(log))

	accountStore := account.NewPGStore(pool)
	accountSvc := account.NewService(cfg.Account, accountStore, bonusSvc, mailer, sessions, log)
	billingSvc := billing.NewService(cfg.Billing, subs, sessions, log)
	analysisSvc := analysis.NewService(cfg.Grok, gate, usageStore, bonusSvc,
		analysis.NewGrokClient(cfg.Grok), analysis.NewRedisCache(redisClient, 0), sessions, log)
	adminSvc := admin.NewService(cfg.Admin, admin.NewPGStore(pool), admin.NewPGCampaignStore(pool),
		bonusSvc, accountStore, mailer, sessions, log)

	scheduler, err := billingSvc.StartScheduler(ctx, func(ctx context.Context) error {
		_, err := bonusSvc.RolloverCycle(ctx)
		return err
	})
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Get("/healthz", httpserver.HealthcheckHandler(map[string]func(context.Context) error{
		"postgres": pg.Healthcheck(pool),
		"redis":    redis.Healthcheck(redisClient),
	}))

	// Account, analysis, and admin own disjoint top-level paths and
	// register directly; billing keeps relative routes under /billing.
	accountSvc.Register(r)
	analysisSvc.Register(r)
	adminSvc.Register(r)
	r.Mount("/billing", billingSvc.Handle())

	log.InfoContext(ctx, "starting server", slog.String("addr", cfg.HTTP.Addr))
	return httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, r)
}

// catalogSource prefers an operator-supplied YAML catalog, falling back to
// the built-in one with Paddle price IDs injected from the environment.
func catalogSource(cfg appConfig) subscription.CatalogSource {
	if cfg.PlansFile != "" {
		return subscription.NewFileSource(cfg.PlansFile)
	}
	return subscription.NewStaticSource(subscription.DefaultCatalog(map[subscription.PlanID]string{
		subscription.PlanCoreMonthly:  cfg.PriceCoreMonthly,
		subscription.PlanCoreAnnual:   cfg.PriceCoreAnnual,
		subscription.PlanPrimeMonthly: cfg.PricePrimeMonthly,
		subscription.PlanPrimeAnnual:  cfg.PricePrimeAnnual,
	}))
}

// newMailer uses Postmark when a server token is configured and falls back
// to logging email locally.
func newMailer(cfg email.Config, log *slog.Logger) (email.EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		log.Warn("POSTMARK_SERVER_TOKEN not set, email will be logged instead of sent")
		return email.NewDevSender(log), nil
	}
	return email.NewPostmarkClient(cfg)
}
