package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"clinote/internal/app"
	"clinote/internal/config"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "clinote",
		Short:         "Assemble clinical progress notes and answer patient questions",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CLINOTE_CONFIG"), "path to a YAML config file")

	// services are built lazily so render works without any configuration
	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		return app.New(cmd.Context(), cfg, prometheus.NewRegistry())
	}

	root.AddCommand(noteCmd(open))
	root.AddCommand(renderCmd())
	root.AddCommand(batchCmd(open))
	root.AddCommand(ingestCmd(open))
	root.AddCommand(askCmd(open))
	return root
}

type opener func(cmd *cobra.Command) (*app.App, error)
