package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/scoutchat/scout/internal/app"
	"github.com/scoutchat/scout/internal/config"
)

var promptStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("205")).
	Bold(true)

// runAsk answers a single question and exits. The question is all
// remaining arguments joined, so quoting is optional.
func runAsk(cfg *config.Config, logger *slog.Logger, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: scout ask <question>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("assembling application: %w", err)
	}
	defer application.Close()

	fmt.Println(promptStyle.Render("> " + question))

	resp, err := application.Agent.Execute(ctx, "", question)
	if err != nil {
		return fmt.Errorf("asking: %w", err)
	}

	rendered, err := glamour.Render(resp.Text, "auto")
	if err != nil {
		// Terminal rendering is cosmetic; fall back to the raw text.
		logger.Debug("rendering markdown", "error", err)
		fmt.Println(resp.Text)
		return nil
	}
	fmt.Fprint(os.Stdout, rendered)
	return nil
}
