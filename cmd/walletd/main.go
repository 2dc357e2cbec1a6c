/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the wallet ledger daemon. Handles configuration,
  dependency injection, and graceful shutdown, plus offline audit commands.

COMMANDS:
  serve        Run the HTTP server
  verify       Replay-audit one account (or all) against live state
  checkpoint   Write a checkpoint snapshot for an account

STARTUP SEQUENCE (serve):
  1. Load TOML config (flags override)
  2. Open SQLite store
  3. Build wallet service
  4. Configure HTTP router
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./walletd serve --db=./data/wallet.db

  # Run with in-memory database
  ./walletd serve --db=":memory:"

  # Audit every account; exits nonzero on any mismatch
  ./walletd verify --all --db=./data/wallet.db

SEE ALSO:
  - api/server.go: Router configuration
  - wallet/service.go: Apply/checkpoint/verify semantics
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/k3lvincodes/Q-app-sub000/api"
	"github.com/k3lvincodes/Q-app-sub000/config"
	"github.com/k3lvincodes/Q-app-sub000/ledger"
	"github.com/k3lvincodes/Q-app-sub000/logging"
	"github.com/k3lvincodes/Q-app-sub000/store/sqlite"
	"github.com/k3lvincodes/Q-app-sub000/wallet"
)

var (
	configPath string
	dbPath     string
	addr       string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "walletd",
	Short: "Append-only wallet ledger engine",
	Long: `walletd maintains per-account wallet balances as a pure fold over an
append-only transaction log. Every mutation is an idempotent transaction;
the verify command replays the log and proves it matches live state.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	serveCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")

	verifyCmd.Flags().String("account", "", "Account to verify")
	verifyCmd.Flags().Bool("all", false, "Verify every account")

	checkpointCmd.Flags().String("account", "", "Account to checkpoint (required)")
	checkpointCmd.Flags().String("key", "", "Idempotency key (generated when omitted)")
	checkpointCmd.Flags().String("actor", "cli", "Actor recorded on the checkpoint")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(checkpointCmd)
}

// loadConfig merges the config file with flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// openService builds the full stack: store, locks, service.
func openService(cfg config.Config) (*wallet.Service, *sqlite.Store, error) {
	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	log := logging.New(cfg.Log.Level)
	return wallet.NewService(store, log), store, nil
}

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logging.New(cfg.Log.Level)

		service, store, err := openService(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		handler := api.NewHandler(service, log)
		router := api.NewRouter(handler)

		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		go func() {
			log.WithField("addr", cfg.Server.Addr).Info("server starting")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Fatal("server failed")
			}
		}()

		// Wait for interrupt signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}

		log.Info("server stopped")
		return nil
	},
}

// =============================================================================
// VERIFY
// =============================================================================

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay the transaction log and compare against live state",
	Long: `Rebuilds wallet state from the latest checkpoint (or zero) and every
transaction after it, then compares against the live row. Any mismatch is
reported and the command exits nonzero. State is never modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		service, store, err := openService(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		account, _ := cmd.Flags().GetString("account")
		all, _ := cmd.Flags().GetBool("all")
		if account == "" && !all {
			return fmt.Errorf("either --account or --all is required")
		}

		ctx := context.Background()

		var results []*ledger.VerifyResult
		if all {
			results, err = service.VerifyAll(ctx)
			if err != nil {
				return err
			}
		} else {
			res, err := service.Verify(ctx, ledger.AccountID(account))
			if err != nil {
				return err
			}
			results = []*ledger.VerifyResult{res}
		}

		mismatches := 0
		for _, res := range results {
			if res.Match {
				fmt.Printf("OK       %s  live=%s replayed=%d txs\n",
					res.AccountID, res.Live, res.ReplayedCount)
				continue
			}
			mismatches++
			fmt.Printf("MISMATCH %s  live=%s replayed=%s\n",
				res.AccountID, res.Live, res.Replayed)
		}
		if mismatches > 0 {
			return fmt.Errorf("%d account(s) failed verification", mismatches)
		}
		return nil
	},
}

// =============================================================================
// CHECKPOINT
// =============================================================================

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Write a checkpoint snapshot into an account's log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		service, store, err := openService(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		account, _ := cmd.Flags().GetString("account")
		key, _ := cmd.Flags().GetString("key")
		actor, _ := cmd.Flags().GetString("actor")
		if account == "" {
			return fmt.Errorf("--account is required")
		}

		result, err := service.Checkpoint(context.Background(), ledger.AccountID(account), key, actor)
		if err != nil {
			return err
		}
		if result.Duplicate {
			fmt.Printf("checkpoint already exists for key %q\n", key)
			return nil
		}
		fmt.Printf("checkpoint written: account=%s state=%s seq=%d\n",
			account, result.State, result.Transaction.Seq)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
