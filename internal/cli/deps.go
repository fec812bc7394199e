package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"emprendo-intake/internal/app"
	"emprendo-intake/internal/config"
	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/grading"
	"emprendo-intake/internal/infra/memory"
	"emprendo-intake/internal/infra/openai"
	"emprendo-intake/internal/infra/postgres"
	"emprendo-intake/internal/infra/queue"
	redisstore "emprendo-intake/internal/infra/redis"
)

// deps holds the wired service graph. Without Postgres or Redis the
// in-memory adapters and the sample forms are used.
type deps struct {
	service *app.IntakeService
	monitor *app.RunMonitor
	forms   app.FormRepository
	cache   formCache
	apps    app.ApplicationRepository
	closers []func() error
}

type formCache interface {
	Invalidate(ctx context.Context) error
}

// reloadForms drops cached form definitions so the next read goes to the loader.
func (d *deps) reloadForms(ctx context.Context) error {
	if d.cache == nil {
		return nil
	}
	if err := d.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate form cache: %w", err)
	}
	log.Printf("form cache invalidated")
	return nil
}

// reloadOnSignal reloads forms on every value from sig until ctx is done.
func (d *deps) reloadOnSignal(ctx context.Context, sig <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := d.reloadForms(ctx); err != nil {
				log.Printf("reload forms: %v", err)
			}
		}
	}
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

func buildDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	d := &deps{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, redisClient.Close)
	}

	var loader memory.FormLoader = memory.NewStaticFormLoader(sampleForms()...)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		loader = postgres.NewFormLoader(pool, domain.ParsePrecedence(cfg.Forms.ConditionPrecedence))

		db := postgres.OpenDB(cfg.Postgres.URL)
		d.closers = append(d.closers, db.Close)
		d.apps = postgres.NewApplicationRepository(db)
	} else {
		log.Printf("postgres not configured, using in-memory applications and sample forms")
		d.apps = memory.NewApplicationStore()
	}

	formTTL := config.TTLDuration(cfg.Forms.TTL, 10*time.Minute)
	resultTTL := config.TTLDuration(cfg.Intake.ResultTTL, time.Hour)
	runTTL := config.TTLDuration(cfg.Grading.RunTTL, 24*time.Hour)

	var (
		results  app.ResultStore
		notifier app.Notifier
		runs     app.RunRepository
	)
	if redisClient != nil {
		forms := redisstore.NewFormRepository(redisClient, loader, formTTL)
		d.forms, d.cache = forms, forms
		results = redisstore.NewResultStore(redisClient, resultTTL)
		runs = redisstore.NewRunStore(redisClient, runTTL)

		queueClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, queueClient.Close)
		notifier = queue.NewNotifier(queueClient, cfg.Queue.Name, cfg.Queue.MaxRetry)
	} else {
		forms := memory.NewFormRepository(loader, formTTL)
		d.forms, d.cache = forms, forms
		results = memory.NewResultStore(resultTTL)
		runs = memory.NewRunStore()
		notifier = memory.NewOutbox()
	}

	d.service = app.NewIntakeService(d.forms, d.apps, notifier, results, app.IntakeOptions{
		BaseURL:      cfg.Server.BaseURL,
		CurrentGroup: cfg.Intake.CurrentGroup,
		Scoring:      scoringClients(cfg),
		Parallelism:  cfg.Scoring.Parallelism,
	})
	d.monitor = app.NewRunMonitor(runs, d.service)
	return d, nil
}

// scoringClients returns the external scoring clients. Without an API key the
// clients are nil and every text answer degrades to a scoring failure.
func scoringClients(cfg config.Config) grading.Clients {
	timeout := config.TTLDuration(cfg.Scoring.Timeout, grading.DefaultTimeout)
	clients := grading.Clients{Timeout: timeout}
	if cfg.Scoring.APIKey == "" {
		log.Printf("scoring api key not configured, text answers will be graded as failures")
		return clients
	}
	client := openai.NewClient(openai.Options{
		BaseURL:         cfg.Scoring.BaseURL,
		APIKey:          cfg.Scoring.APIKey,
		Model:           cfg.Scoring.Model,
		ModerationModel: cfg.Scoring.ModerationModel,
	}, &http.Client{Timeout: timeout + 5*time.Second})
	clients.Completer = client
	clients.Moderator = client
	return clients
}
