package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/eringen/autoblog"
	"github.com/eringen/autoblog/ingest"
	"github.com/eringen/autoblog/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// CLI flags
var (
	configFlag   string
	imageFlags   []string
	guidanceFlag string
	modeFlag     string
	scheduleFlag string
)

var rootCmd = &cobra.Command{
	Use:   "autoblog",
	Short: "Generate photo studio blog articles from session photos",
	Long: `autoblog turns a few photos of a shoot and a line of guidance into a
complete blog article: it analyses the images, collects context about the
studio, asks the text generator for an article, cleans up the answer, places
the photos and stores the document as a draft, published or scheduled post.

Configuration is read from --config, a .env file and AUTOBLOG_* variables,
e.g. AUTOBLOG_ADMIN_PASSWORD or AUTOBLOG_GENERATION_OPENAI_KEY.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := autoblog.LoadConfig(configFlag)
		if err != nil {
			return err
		}
		logging.Init(cfg.Log.Level, cfg.Log.Format)
		loaded = cfg
		return nil
	},
}

var loaded autoblog.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server with the admin API, feed and sitemap",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := autoblog.New(loaded)
		defer app.Close()

		errc := make(chan error, 1)
		go func() { errc <- app.Start(ctx) }()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.Echo.Shutdown(shutdownCtx)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the pipeline once and print the stored document as JSON",
	Example: `  autoblog generate --image a.jpg --image b.jpg --guidance "Familienfotografie im Herbstpark"
  autoblog generate -i a.jpg --mode schedule --schedule 2026-11-02T09:00:00+01:00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := autoblog.RunRequest{
			Guidance: guidanceFlag,
			Mode:     autoblog.ParsePublishMode(modeFlag),
		}
		if scheduleFlag != "" {
			at, err := time.Parse(time.RFC3339, scheduleFlag)
			if err != nil {
				return fmt.Errorf("--schedule: %w", err)
			}
			req.ScheduledFor = at
		}
		for _, path := range imageFlags {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			req.Uploads = append(req.Uploads, ingest.Upload{Filename: filepath.Base(path), Data: data})
		}

		app := autoblog.New(loaded)
		defer app.Close()
		res, err := app.Generate(cmd.Context(), req)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the autoblog version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "autoblog %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (YAML, TOML or JSON)")

	generateCmd.Flags().StringArrayVarP(&imageFlags, "image", "i", nil, "Image file to upload (repeatable)")
	generateCmd.Flags().StringVarP(&guidanceFlag, "guidance", "g", "", "Free-text guidance for the article")
	generateCmd.Flags().StringVarP(&modeFlag, "mode", "m", "draft", "Publication mode: draft, publish or schedule")
	generateCmd.Flags().StringVar(&scheduleFlag, "schedule", "", "Publication time for --mode schedule (RFC 3339)")

	rootCmd.AddCommand(serveCmd, generateCmd, versionCmd, reviewCmd, knowledgeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
