package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pszemraj/localpaste/pkg/api"
	"github.com/pszemraj/localpaste/pkg/backup"
	"github.com/pszemraj/localpaste/pkg/config"
	"github.com/pszemraj/localpaste/pkg/detect"
	"github.com/pszemraj/localpaste/pkg/kv"
	"github.com/pszemraj/localpaste/pkg/lock"
	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/metrics"
	"github.com/pszemraj/localpaste/pkg/store"
	"github.com/pszemraj/localpaste/pkg/txn"
	"github.com/pszemraj/localpaste/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "localpaste",
	Short: "LocalPaste - local-first paste manager",
	Long: `LocalPaste is a single-user, local-first paste manager: snippets
organized into a folder tree, stored in an embedded database, served over a
loopback HTTP API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"LocalPaste version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Optional YAML config file")
	rootCmd.PersistentFlags().String("db-path", "", "Database directory (overrides DB_PATH)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(forceUnlockCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(reindexCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig resolves the config file flag plus environment, then applies
// CLI overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := rootCmd.PersistentFlags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if dbPath, _ := rootCmd.PersistentFlags().GetString("db-path"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the store and the loopback HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		kvStore, err := kv.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer kvStore.Close()

		pastes, err := store.NewPasteStore(kvStore, detect.Detect)
		if err != nil {
			return err
		}
		folders, err := store.NewFolderStore(kvStore)
		if err != nil {
			return err
		}
		coord := txn.NewCoordinator(pastes, folders)
		if err := coord.StartupMaintenance(cfg.ForceReindex); err != nil {
			return err
		}

		metrics.Register()
		backend := worker.New(coord, pastes, cfg.AutoSaveInterval)
		defer backend.Close()

		server := api.New(cfg, coord, pastes, folders, backend)
		log.Info(fmt.Sprintf("LocalPaste listening on %s (db: %s)", server.Addr(), cfg.DBPath))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if err := group.Wait(); err != nil {
			return err
		}

		if cfg.AutoBackup {
			if dest, err := backup.Run(kvStore, cfg.DBPath); err != nil {
				log.Errorf("auto-backup failed", err)
			} else {
				log.Info("auto-backup written to " + dest)
			}
		}
		return nil
	},
}

var forceUnlockCmd = &cobra.Command{
	Use:   "force-unlock",
	Short: "Remove stale lock files after an unclean shutdown",
	Long: `Remove the known stale lock files from the database directory.

The operation preflights every candidate lock: if any is still held by a
running process, nothing is removed. The owner lock itself is never
touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		removed, err := lock.NewLockManager(cfg.DBPath).ForceUnlock()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d stale lock file(s) from %s\n", removed, cfg.DBPath)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Flush the store and copy the database directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		kvStore, err := kv.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer kvStore.Close()

		dest, err := backup.Run(kvStore, cfg.DBPath)
		if err != nil {
			return err
		}
		fmt.Printf("Backup written to %s\n", dest)
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Force a rebuild of the derived metadata indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		kvStore, err := kv.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer kvStore.Close()

		pastes, err := store.NewPasteStore(kvStore, detect.Detect)
		if err != nil {
			return err
		}
		folders, err := store.NewFolderStore(kvStore)
		if err != nil {
			return err
		}
		coord := txn.NewCoordinator(pastes, folders)
		if err := coord.StartupMaintenance(true); err != nil {
			return err
		}
		count, err := pastes.CountCanonical()
		if err != nil {
			return err
		}
		fmt.Printf("Reindexed %d paste(s)\n", count)
		return nil
	},
}
