package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/core-coin/stakeplan/internal/catalog"
	"github.com/core-coin/stakeplan/internal/config"
	"github.com/core-coin/stakeplan/internal/engine"
	"github.com/core-coin/stakeplan/internal/http_api"
	"github.com/core-coin/stakeplan/internal/lock"
	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/internal/notificator"
	"github.com/core-coin/stakeplan/internal/repository"
	"github.com/core-coin/stakeplan/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "stakeplan",
		Usage: "Stakeplan is a ledger and subscription engine for plans, wallets and referrals",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db-driver", Usage: "Database driver (postgres or sqlite)"},
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "sqlite-path", Usage: "SQLite database file"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API and the expiry sweeper",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
					&cli.StringFlag{Name: "redis-addr", Aliases: []string{"r"}, Usage: "Redis address for per-user locks"},
					&cli.StringFlag{Name: "sweep-schedule", Usage: "Cron schedule of the expiry sweeper, empty disables it"},
				},
				Action: serve,
			},
			{
				Name:  "seed-plans",
				Usage: "Load the plan catalog from a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Catalog file (defaults to PLANS_FILE)"},
				},
				Action: seedPlans,
			},
		},
		Action: serve,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("db-driver") {
		cfg.DBDriver = c.String("db-driver")
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("sqlite-path") {
		cfg.SQLitePath = c.String("sqlite-path")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("redis-addr") {
		cfg.RedisAddr = c.String("redis-addr")
	}
	if c.IsSet("sweep-schedule") {
		cfg.ExpirySweepSchedule = c.String("sweep-schedule")
	}
	if c.IsSet("file") {
		cfg.PlansFile = c.String("file")
	}
	return cfg, nil
}

func openRepository(cfg *config.Config, log *logger.Logger) (models.Repository, error) {
	if cfg.DBDriver == config.DriverSQLite {
		return repository.NewSQLiteDB(cfg.SQLitePath, log)
	}
	return repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
}

func seed(ctx context.Context, db models.Repository, path string, log *logger.Logger) error {
	plans, err := catalog.Load(path)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		if err := db.UpsertPlan(ctx, plan); err != nil {
			return fmt.Errorf("failed to store plan %s: %w", plan.ID, err)
		}
	}
	log.Info("Plan catalog seeded", "file", path, "plans", len(plans))
	return nil
}

func seedPlans(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.PlansFile == "" {
		return fmt.Errorf("--file or PLANS_FILE is required")
	}

	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	db, err := openRepository(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	return seed(c.Context, db, cfg.PlansFile, log)
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := openRepository(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.PlansFile != "" {
		if err := seed(ctx, db, cfg.PlansFile, log); err != nil {
			return err
		}
	}

	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	// Initialize notificator
	notif, err := newNotificator(ctx, cfg, log)
	if err != nil {
		return err
	}

	policy := engine.Policy{
		WithdrawalCapRatio:      cfg.WithdrawalCapRatio,
		DebitWalletOnActivation: cfg.DebitWalletOnActivation,
		DepositPresets:          cfg.DepositPresets,
		ExpirySweepSchedule:     cfg.ExpirySweepSchedule,
	}
	var notifications models.NotificationService
	if notif.Enabled() {
		notifications = notif
	}
	app := engine.NewEngine(db, locker, notifications, log, policy)
	if err := app.Start(); err != nil {
		return err
	}
	defer app.Stop()

	// Initialize API server
	apiServer := http_api.NewHTTPServer(app, http_api.Options{
		Port:           cfg.APIPort,
		JWTSecret:      cfg.JWTSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Development:    cfg.Development,
	}, log)
	go apiServer.Start()

	<-ctx.Done()
	log.Info("Shutting down")
	return apiServer.Stop(context.Background())
}

// newLocker picks the Redis lease lock when REDIS_ADDR is set and an in-process lock otherwise.
func newLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) (models.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("Using in-process user locks")
		return lock.NewKeyedMutex(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	locker := lock.NewRedisLocker(rdb, cfg.LockTTL)
	locker.OnLost(func(key string) {
		log.Warn("User lock expired before release", "key", key, "ttl", cfg.LockTTL)
	})
	log.Info("Using redis user locks", "address", cfg.RedisAddr)
	return locker, func() { _ = rdb.Close() }, nil
}

func newNotificator(ctx context.Context, cfg *config.Config, log *logger.Logger) (*notificator.Notificator, error) {
	var channels []notificator.Channel
	if cfg.TelegramBotToken != "" {
		tg, err := notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			return nil, err
		}
		tg.Start(ctx)
		channels = append(channels, tg)
	}
	if cfg.SMTPHost != "" {
		channels = append(channels, notificator.NewEmailNotificator(log,
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, cfg.AdminEmail))
	}
	if len(channels) == 0 {
		log.Info("No notification channels configured")
	}
	return notificator.NewNotificator(log, channels...), nil
}
