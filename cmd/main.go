package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"shop-assistant/handler"
	"shop-assistant/internal/assistant"
	"shop-assistant/internal/config"
	"shop-assistant/internal/integrations/openai"
	"shop-assistant/internal/integrations/paramstore"
	"shop-assistant/internal/logger"
	"shop-assistant/internal/repository"
	"shop-assistant/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		if boot, lerr := logger.New(config.DefaultLogMode); lerr == nil {
			fatal(boot, "invalid configuration", err)
		}
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal(log, "failed to load AWS config", err)
	}

	// ---- Clients ----
	var params *paramstore.Client
	if cfg.ParamPrefix != "" {
		params, err = paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			fatal(log, "failed to create SSM client", err)
		}
	}

	dbPassword := cfg.DBPassword
	if dbPassword == "" && params != nil {
		dbPassword, err = params.GetParameter(ctx, cfg.DBPasswordParameter())
		if err != nil {
			fatal(log, "failed to load database password", err)
		}
	}
	db, err := repository.OpenMySQL(ctx, repository.DBConfig{
		Host:     cfg.DBHost,
		Database: cfg.DBName,
		User:     cfg.DBUser,
		Password: dbPassword,
	})
	if err != nil {
		fatal(log, "failed to open database", err)
	}
	catalog, err := repository.NewCatalog(db, log, cfg.DBTimeout)
	if err != nil {
		fatal(log, "failed to create catalog", err)
	}

	llmOpts := []openai.Option{openai.WithBaseURL(cfg.LLMBaseURL)}
	if cfg.LLMAPIKey != "" {
		llmOpts = append(llmOpts, openai.WithAPIKey(cfg.LLMAPIKey))
	} else {
		llmOpts = append(llmOpts, openai.WithTokenParameter(params, cfg.LLMTokenParameter()))
	}
	llm, err := openai.NewClient(llmOpts...)
	if err != nil {
		fatal(log, "failed to create model client", err)
	}

	dynamo := awsdynamodb.NewFromConfig(awsCfg)
	var store usecase.SessionStore
	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		store = repository.NewMemoryStore()
	default:
		stateClient, err := repository.New(dynamo, cfg.StateTable)
		if err != nil {
			fatal(log, "failed to create state client", err)
		}
		store = stateClient
	}

	var tickets assistant.TicketSink
	if cfg.TicketTable != "" {
		ticketClient, err := repository.New(dynamo, cfg.TicketTable)
		if err != nil {
			fatal(log, "failed to create ticket client", err)
		}
		tickets = ticketClient
	}

	// ---- Assistant ----
	bot, err := assistant.New(llm, catalog, tickets, log, assistant.Options{
		Model:             cfg.LLMModel,
		LLMTimeout:        cfg.LLMTimeout,
		MaxSteps:          cfg.MaxSteps,
		MaxToolRounds:     cfg.MaxToolRounds,
		AttributeCacheTTL: cfg.AttributeCacheTTL,
	})
	if err != nil {
		fatal(log, "failed to create assistant", err)
	}
	bot.Warm(ctx)

	// ---- Handler ----
	chatService, err := usecase.NewChatService(store, bot, log, cfg.MaxMessageLength, cfg.MaxTurns)
	if err != nil {
		fatal(log, "failed to create chat service", err)
	}

	h, err := handler.NewHandler(chatService, log)
	if err != nil {
		fatal(log, "failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(log *logger.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	log.Sync()
	os.Exit(1)
}
