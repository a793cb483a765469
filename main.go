package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sorrisolabs/agendabot/agent/booking"
	"github.com/sorrisolabs/agendabot/agent/deadletter"
	"github.com/sorrisolabs/agendabot/agent/engine"
	"github.com/sorrisolabs/agendabot/agent/idempotency"
	"github.com/sorrisolabs/agendabot/agent/knowledge"
	"github.com/sorrisolabs/agendabot/agent/llm"
	lockx "github.com/sorrisolabs/agendabot/agent/lock"
	"github.com/sorrisolabs/agendabot/agent/nlg"
	"github.com/sorrisolabs/agendabot/agent/nlu"
	"github.com/sorrisolabs/agendabot/agent/pipeline"
	"github.com/sorrisolabs/agendabot/agent/prompt"
	"github.com/sorrisolabs/agendabot/agent/schedule"
	statex "github.com/sorrisolabs/agendabot/agent/state"
	templatex "github.com/sorrisolabs/agendabot/agent/template"
	toolx "github.com/sorrisolabs/agendabot/agent/tool"
	configx "github.com/sorrisolabs/agendabot/pkg/config"
	"github.com/sorrisolabs/agendabot/pkg/evolution"
	_ "github.com/sorrisolabs/agendabot/pkg/logger/autoload"
	openrouterx "github.com/sorrisolabs/agendabot/pkg/openrouter"
	"github.com/sorrisolabs/agendabot/pkg/postgres"
	"github.com/sorrisolabs/agendabot/server"
)

type RedisConfig struct {
	Addr     string `split_words:"true" default:"localhost:6379"`
	Password string `split_words:"true"`
	DB       int    `split_words:"true" default:"0"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisCfg := configx.MustNew[RedisConfig]("REDIS")
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	pgCfg := configx.MustNew[postgres.Config]("POSTGRES")
	db := postgres.MustNew(ctx, *pgCfg)
	defer db.Close()

	repo := booking.NewBunRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("booking migration failed")
	}
	sink := deadletter.NewBunSink(db)
	if err := sink.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("dead letter migration failed")
	}

	calendar := schedule.NewCalendar(*configx.MustNew[schedule.Config]("SCHEDULE"))
	eng := engine.New(calendar, knowledge.NewBase(), *configx.MustNew[engine.Config]("ENGINE"))
	executor := toolx.NewExecutor(repo, calendar, *configx.MustNew[toolx.Config](""), log.Logger)

	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm configuration")
	}
	prompts := prompt.LoadPromptSet()

	nluModelCfg := llmCfg.OpenRouterFor(llm.BoundaryNLU)
	checkCtx, cancelCheck := context.WithTimeout(ctx, 10*time.Second)
	if err := openrouterx.CheckCredentials(checkCtx, nluModelCfg); err != nil {
		log.Warn().Err(err).Msg("openrouter credential check failed")
	}
	cancelCheck()
	interpreter, err := nlu.New(ctx, &nluModelCfg, prompts.NLU, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("interpreter init failed")
	}
	nlgModelCfg := llmCfg.OpenRouterFor(llm.BoundaryNLG)
	generator, err := nlg.New(ctx, &nlgModelCfg, prompts.NLG, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("generator init failed")
	}

	pipeCfg := configx.MustNew[pipeline.Config]("PIPELINE")
	store := statex.NewRedisStore(redisClient, statex.WithTTL(pipeCfg.ConversationTTL))
	guard := idempotency.NewRedisGuard(redisClient)
	locker := lockx.NewRedisLocker(redisClient)

	svc, err := pipeline.New(
		store, guard, locker,
		interpreter, generator, executor,
		eng, templatex.NewCatalog(), sink,
		*pipeCfg, log.Logger,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline init failed")
	}

	if pipeCfg.ReplayInterval > 0 {
		go func() {
			ticker := time.NewTicker(pipeCfg.ReplayInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := svc.Replay(ctx, sink, pipeCfg.ReplayBatch)
					if err != nil {
						log.Warn().Err(err).Msg("dead letter replay failed")
					} else if n > 0 {
						log.Info().Int("replayed", n).Msg("dead letters replayed")
					}
				}
			}
		}()
	}

	var sender server.Sender
	if evoCfg, err := configx.New[evolution.Config]("EVOLUTION"); err == nil {
		if client, err := evolution.NewClient(*evoCfg); err == nil {
			sender = client
		} else {
			log.Warn().Err(err).Msg("evolution client disabled")
		}
	} else {
		log.Warn().Err(err).Msg("evolution not configured, outbound delivery disabled")
	}

	srv := server.New(*configx.MustNew[server.Config]("SERVER"), svc, sender, log.Logger)
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}
