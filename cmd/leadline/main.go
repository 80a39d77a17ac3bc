package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexcodex/leadline/config"
	"github.com/lexcodex/leadline/engine"
	"github.com/lexcodex/leadline/framework"
	"github.com/lexcodex/leadline/geo"
	"github.com/lexcodex/leadline/llm"
	"github.com/lexcodex/leadline/persistence"
	"github.com/lexcodex/leadline/server"
	"github.com/lexcodex/leadline/tools"
)

var flagConfig string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "leadline",
		Short: "Conversational lead intake for the debt resolution program",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("LEADLINE_CONFIG"), "Path to YAML config file")
	root.AddCommand(newServeCmd(), newChatCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket/HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			logger := log.New(os.Stdout, "leadline ", log.LstdFlags)

			store, closeStore, err := buildStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			assistant := buildAssistant(cfg, logger)
			gateway := server.NewGateway(assistant, store, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cmd.Printf("Starting gateway on %s (llm=%s store=%s)\n", cfg.ListenAddr, cfg.LLM.Provider, cfg.Store.Driver)
			return gateway.ServeContext(ctx, cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "chat ", log.LstdFlags)
			assistant := buildAssistant(cfg, logger)
			return runChatUI(assistant)
		},
	}
	return cmd
}

func buildStore(cfg config.Config) (persistence.SessionStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return persistence.NewMemorySessionStore(), func() {}, nil
	case "", "sqlite":
		store, err := persistence.NewSQLiteSessionStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func buildAssistant(cfg config.Config, logger *log.Logger) *engine.Assistant {
	var model llm.DecisionClient
	var extractor llm.Extractor
	switch cfg.LLM.Provider {
	case "ollama":
		client := llm.NewOllamaClient(cfg.LLM.Endpoint, cfg.LLM.Model)
		model, extractor = client, client
	default:
		client := llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Endpoint)
		model, extractor = client, client
	}

	carbon := tools.NewCarbonClient(cfg.Carbon.BaseURL, cfg.Carbon.APIKey,
		time.Duration(cfg.Carbon.TimeoutSeconds)*time.Second)

	registry := buildToolRegistry(carbon)

	return &engine.Assistant{
		Model: model,
		Collector: &engine.InfoCollector{
			Extractor: extractor,
			Geocoder:  geo.NewHTTPGeocoder(cfg.Geocoder.Endpoint),
			Logger:    logger,
		},
		Executor: &engine.ToolExecutor{
			Registry: registry,
			Timeout:  time.Duration(cfg.Engine.ToolTimeoutSeconds) * time.Second,
		},
		System:      engine.PersonaPrompt,
		MaxRetries:  cfg.Engine.MaxRetries,
		MaxToolHops: cfg.Engine.MaxToolHops,
		Logger:      logger,
	}
}

func buildToolRegistry(carbon *tools.CarbonClient) *framework.ToolRegistry {
	registry := framework.NewToolRegistry()
	registry.Register(tools.NewAskContactPermissionTool())
	registry.Register(tools.NewAskCreditPullPermissionTool())
	registry.Register(&tools.CreditPullTool{API: carbon})
	registry.Register(&tools.LeadCreateTool{API: carbon})
	registry.Register(&tools.WebFormSubmitTool{API: carbon})
	registry.Register(&tools.SavingsEstimateTool{})
	return registry
}
