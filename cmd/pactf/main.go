package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/PACTF/pactf/internal/api"
	"github.com/PACTF/pactf/internal/config"
	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/grader"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/PACTF/pactf/internal/ratelimit"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var Version = "dev-build"

func main() {

	fmt.Fprintf(os.Stderr, "PACTF %s - CTF Contest Engine\n\n", Version)

	// config
	var configPath string
	flag.StringVar(&configPath, "c", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// logger
	var logger *zap.Logger
	if cfg.Logger.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// database
	db, err := database.Init(cfg.Storage.Database)
	if err != nil {
		zap.S().Fatalf("failed to initialize database: %v", err)
	}
	zap.S().Info("database initialized successfully")

	// problem script loader
	var scripts grader.Loader
	if cfg.Problems.Sandbox.Enabled {
		loader, err := grader.NewDockerLoader(
			cfg.Problems.Sandbox.Docker,
			cfg.Problems.Root,
			cfg.Problems.Sandbox.Image,
			cfg.Problems.Interpreter,
			cfg.ScriptTimeoutDuration())
		if err != nil {
			zap.S().Fatalf("failed to initialize sandbox: %v", err)
		}
		scripts = loader
		zap.S().Info("problem scripts run sandboxed")
	} else {
		scripts = &grader.ExecLoader{
			Root:        cfg.Problems.Root,
			Interpreter: cfg.Problems.Interpreter,
			Timeout:     cfg.ScriptTimeoutDuration(),
		}
		zap.S().Warn("problem scripts run unsandboxed; enable problems.sandbox in production")
	}

	// submit rate limiter
	var limiter ratelimit.Limiter
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.Contest.SubmitPerSec)
		zap.S().Infof("rate limiting via redis at %s", cfg.Redis.Addr)
	} else {
		limiter = ratelimit.NewMemoryLimiter(clockwork.NewRealClock(), cfg.Contest.SubmitPerSec)
	}

	// contest engine
	broker := pubsub.NewBroker()
	engine := contest.New(db, cfg, clockwork.NewRealClock(), scripts, broker)

	// API router
	router := api.NewRouter(cfg, db, engine, limiter, broker)

	go func() {
		zap.S().Infof("starting server at %s", cfg.Listen)
		if err := router.Run(cfg.Listen); err != nil {
			zap.S().Fatalf("failed to start server: %v", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down server...")
}
