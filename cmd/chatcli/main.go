// Command chatcli talks to the shop assistant from a terminal. It reads the
// same environment as the Lambda, keeps sessions in memory and prints every
// routing step as it completes.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"shop-assistant/internal/assistant"
	"shop-assistant/internal/config"
	"shop-assistant/internal/integrations/openai"
	"shop-assistant/internal/logger"
	"shop-assistant/internal/repository"
	"shop-assistant/internal/usecase"
)

var (
	envFile    string
	threadFlag string
	quiet      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatcli [message]",
	Short: "Chat with the shop assistant from the terminal",
	Long: `chatcli runs customer messages through the assistant's routing graph
using the catalog database and model configured in the environment.

With a message argument it runs a single turn; without one it reads
messages from stdin, one per line, on the same thread.

Examples:
  chatcli "商品id为1，身高175，体重65kg，穿什么码"
  chatcli --env-file .env.local --thread demo`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.Flags().StringVar(&threadFlag, "thread", "", "thread id to continue (generated when empty)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print replies, not routing steps")
}

func run(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	cfg.SessionBackend = config.SessionBackendMemory
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.LLMAPIKey == "" {
		return errors.New("LLM_API_KEY must be set for chatcli")
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	chat, err := newChatService(ctx, cfg, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	threadID := threadFlag
	if len(args) == 1 {
		_, err := turn(ctx, chat, out, threadID, args[0])
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		next, err := turn(ctx, chat, out, threadID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		} else {
			threadID = next
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func newChatService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*usecase.ChatService, error) {
	db, err := repository.OpenMySQL(ctx, repository.DBConfig{
		Host:     cfg.DBHost,
		Database: cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
	})
	if err != nil {
		return nil, err
	}
	catalog, err := repository.NewCatalog(db, log, cfg.DBTimeout)
	if err != nil {
		return nil, err
	}
	llm, err := openai.NewClient(openai.WithBaseURL(cfg.LLMBaseURL), openai.WithAPIKey(cfg.LLMAPIKey))
	if err != nil {
		return nil, err
	}
	bot, err := assistant.New(llm, catalog, nil, log, assistant.Options{
		Model:             cfg.LLMModel,
		LLMTimeout:        cfg.LLMTimeout,
		MaxSteps:          cfg.MaxSteps,
		MaxToolRounds:     cfg.MaxToolRounds,
		AttributeCacheTTL: cfg.AttributeCacheTTL,
	})
	if err != nil {
		return nil, err
	}
	bot.Warm(ctx)
	return usecase.NewChatService(repository.NewMemoryStore(), bot, log, cfg.MaxMessageLength, cfg.MaxTurns)
}

// turn runs one message on threadID and returns the thread id to continue on.
func turn(ctx context.Context, chat *usecase.ChatService, out io.Writer, threadID, message string) (string, error) {
	res, err := chat.Chat(ctx, usecase.ChatInput{Message: message, ThreadID: threadID}, func(u assistant.StepUpdate) {
		if quiet {
			return
		}
		status := ""
		if u.Degraded {
			status = " (degraded)"
		}
		fmt.Fprintf(out, "  [%d] %s -> %s%s\n", u.Step, u.Node, u.Intent, status)
	})
	if err != nil {
		return threadID, err
	}
	for _, reply := range res.Replies {
		fmt.Fprintln(out, reply)
	}
	if !quiet {
		fmt.Fprintf(out, "  thread=%s intent=%s\n", res.ThreadID, res.Intent)
	}
	return res.ThreadID, nil
}
