package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xhad/docrag/internal/logger"
	cfgPkg "github.com/xhad/docrag/pkg/config"
)

var (
	configPath string
	logLevel   string

	cfg *cfgPkg.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Index documents and chat with them",
	Long: `docrag extracts text from PDF, Word and Excel files, splits it into
overlapping chunks, embeds and indexes them, and answers questions grounded
in the most relevant chunks.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	// .env is optional
	_ = godotenv.Load()

	var err error
	cfg, err = cfgPkg.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log = logger.New(level, cfg.Log.Format, os.Stderr)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}
