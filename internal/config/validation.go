package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Validate checks all configuration values and fails fast on the first
// problem. Called from Load so an invalid config never reaches the app.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateAPIKey(); err != nil {
		return err
	}
	if err := c.validateAgent(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateTools()
}

func (c *Config) validateProvider() error {
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI, ProviderOllama, ProviderOpenAI:
		return nil
	default:
		return fmt.Errorf("%w: %q (supported: gemini, googleai, ollama, openai)", ErrInvalidProvider, c.Provider)
	}
}

func (c *Config) validateModel() error {
	name := strings.TrimSpace(c.ModelName)
	if name == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidModelName, c.ModelName)
	}
	return nil
}

// validateAPIKey verifies the credential for the selected provider is
// present in the environment. Genkit reads the key itself; we only check
// existence here so a missing key aborts startup with a clear message
// instead of failing on the first request.
func (c *Config) validateAPIKey() error {
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY for the gemini provider (get one at https://ai.google.dev/)", ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY for the openai provider", ErrMissingAPIKey)
		}
	case ProviderOllama:
		// Local inference, no credential. Host must still be a URL.
		if _, err := url.ParseRequestURI(c.OllamaHost); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidOllamaHost, c.OllamaHost, err)
		}
	}
	return nil
}

func (c *Config) validateAgent() error {
	if c.MaxTurns < 1 || c.MaxTurns > 25 {
		return fmt.Errorf("%w: %d (must be 1-25)", ErrInvalidMaxTurns, c.MaxTurns)
	}
	if c.HistoryWindow < 0 || c.HistoryWindow > MaxHistoryWindow {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidHistoryWindow, c.HistoryWindow, MaxHistoryWindow)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalidAddr)
	}
	if !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("%w: %q (expected host:port or :port)", ErrInvalidAddr, c.Addr)
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Search.BaseURL != "" {
		u, err := url.Parse(c.Search.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %q", ErrInvalidSearchURL, c.Search.BaseURL)
		}
	}
	return nil
}
