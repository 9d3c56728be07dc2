package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inlay-dev/inlay/pkg/bridge"
	"github.com/inlay-dev/inlay/pkg/engine"
	"github.com/inlay-dev/inlay/pkg/history"
	"github.com/inlay-dev/inlay/pkg/llm"
	"github.com/inlay-dev/inlay/pkg/utils"
	"github.com/inlay-dev/inlay/pkg/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant and the editor websocket bridge",
	Long: `Starts the dispatch engine, the revision store, the companion-file
watcher, and the websocket bridge editors connect to.

Examples:
  inlay serve
  inlay serve --addr 127.0.0.1:7420`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger := utils.GetLogger()

		provider := llm.NewOllama(cfg.LLM.Model)
		if cfg.LLM.TimeoutS > 0 {
			provider.Timeout = time.Duration(cfg.LLM.TimeoutS) * time.Second
		}

		store, err := history.Open(filepath.Join(utils.StateDir(), "history.db"))
		if err != nil {
			return fmt.Errorf("failed to open revision store: %w", err)
		}
		defer store.Close()

		eng := engine.New(cfg, provider, logger)
		eng.Manager.History = store
		eng.Manager.Stats = llm.NewAccuracyStats(store)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go eng.Run(ctx)

		if cfg.Workspace.Watch {
			watcher, err := workspace.NewWatcher(cfg.Workspace.Root, logger)
			if err != nil {
				logger.LogError(err)
			} else {
				defer watcher.Close()
				go func() {
					for ch := range watcher.Changes() {
						change := ch
						eng.Do(func() { eng.HandleCompanionChange(change) })
					}
				}()
			}
		}

		server := bridge.NewServer(eng, logger)
		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe(cfg.Server.Addr) }()

		select {
		case <-ctx.Done():
			logger.LogProcessStep("shutting down")
			return nil
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "bridge listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
