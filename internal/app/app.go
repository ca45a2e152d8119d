// Package app is the composition root: it assembles tracing, the model
// provider, tools, the session store, the agent and the chat flow into
// one ready-to-serve unit.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/scoutchat/scout/internal/agent"
	"github.com/scoutchat/scout/internal/config"
	"github.com/scoutchat/scout/internal/observability"
	"github.com/scoutchat/scout/internal/session"
	"github.com/scoutchat/scout/internal/tools"
)

// App holds the assembled service components.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Genkit *genkit.Genkit
	Store  *session.Store
	Agent  *agent.Agent
	Flow   *agent.Flow

	cleanups []func()
}

// New builds the application. Credential validation has already happened
// in config.Load, so failures here are wiring problems, not user errors.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	stopTracing, err := observability.Setup(ctx, cfg.Otel, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.cleanups = append(a.cleanups, stopTracing)

	g, err := initGenkit(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Genkit = g

	allTools, err := registerTools(g, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	a.Store = session.NewStore()

	chatAgent, err := agent.New(agent.Config{
		Genkit:        g,
		Store:         a.Store,
		Logger:        logger,
		Tools:         allTools,
		ModelName:     cfg.FullModelName(),
		SystemPrompt:  cfg.SystemPrompt,
		MaxTurns:      cfg.MaxTurns,
		HistoryWindow: cfg.HistoryWindow,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	a.Agent = chatAgent
	a.Flow = agent.NewFlow(g, chatAgent)

	return a, nil
}

// Close runs registered cleanups in reverse order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// initGenkit initializes Genkit with the configured provider plugin.
func initGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderGemini, config.ProviderGoogleAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, fmt.Errorf("initializing genkit with GoogleAI plugin")
		}
		return g, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, fmt.Errorf("initializing genkit with OpenAI plugin")
		}
		return g, nil

	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, fmt.Errorf("initializing genkit with Ollama plugin")
		}
		// Ollama models are local pulls; Genkit cannot discover them, so
		// the configured model is registered explicitly.
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		logger.Info("registered ollama model", "model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// registerTools wires the basic and network tool kits.
func registerTools(g *genkit.Genkit, cfg *config.Config, logger *slog.Logger) ([]ai.Tool, error) {
	basics, err := tools.NewBasics(logger)
	if err != nil {
		return nil, err
	}
	basicTools, err := tools.RegisterBasics(g, basics)
	if err != nil {
		return nil, err
	}

	network, err := tools.NewNetwork(tools.NetConfig{
		SearchBaseURL:    cfg.Search.BaseURL,
		MaxResults:       cfg.Search.MaxResults,
		FetchTimeout:     time.Duration(cfg.Fetch.TimeoutMs) * time.Millisecond,
		MaxResponseBytes: cfg.Fetch.MaxResponseBytes,
		Parallelism:      cfg.Fetch.Parallelism,
	}, logger)
	if err != nil {
		return nil, err
	}
	netTools, err := tools.RegisterNetwork(g, network)
	if err != nil {
		return nil, err
	}

	return append(basicTools, netTools...), nil
}
