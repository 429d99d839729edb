package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/boomsapp/boomsd/internal/config"
	"github.com/boomsapp/boomsd/internal/di"
)

var (
	// Server flags
	port     int
	bindAddr string
)

// serverCmd starts the daemon. It is also the default action when no
// subcommand is given.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the BOOMs platform daemon",
	Long: `Start boomsd, which serves:
- the HTTP API (accounts, wallet, trading, gifting, withdrawals)
- payment provider webhooks
- the websocket event stream with journal-backed replay
- the periodic gift sweeper`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}

	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	serverCmd.Flags().StringVar(&bindAddr, "bind", "", "address to bind to (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if bindAddr != "" {
		cfg.Server.Host = bindAddr
	}

	logger := log.Default()
	container := di.New()
	provider := di.NewProvider(container, cfg, logger)
	if err := provider.RegisterAll(); err != nil {
		return err
	}

	handler, err := provider.HTTPServer()
	if err != nil {
		return err
	}
	runner, err := provider.Runner()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if !quiet {
		fmt.Printf("boomsd %s\n", rootCmd.Version)
		fmt.Printf("  - HTTP API:   http://localhost:%d/\n", cfg.Server.Port)
		fmt.Printf("  - WebSocket:  ws://localhost:%d/ws\n", cfg.Server.Port)
		fmt.Printf("  - Health:     http://localhost:%d/health\n", cfg.Server.Port)
		fmt.Printf("  - Environment: %s\n", cfg.Environment)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Gift sweeper: expires stale gifts on a fixed cadence.
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Sweeper.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				result, err := runner.SweepGifts(ctx, cfg.Sweeper.BatchSize)
				if err != nil {
					logger.Printf("gift sweep failed: %v", err)
					continue
				}
				if result.Expired > 0 || result.Abandoned > 0 {
					logger.Printf("gift sweep: %d expired, %d abandoned",
						result.Expired, result.Abandoned)
				}
			}
		}
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = group.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if closeErr := provider.Close(closeCtx); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
