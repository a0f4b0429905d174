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

	"amneziawg-webui/internal/auth"
	"amneziawg-webui/internal/config"
	"amneziawg-webui/internal/database"
	"amneziawg-webui/internal/diaglog"
	"amneziawg-webui/internal/logs"
	"amneziawg-webui/internal/repository"
	"amneziawg-webui/internal/server"
	"amneziawg-webui/internal/settings"
	"amneziawg-webui/internal/util"
	"amneziawg-webui/internal/version"
)

var (
	v          = config.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "amneziawg-webui",
	Short:         "Backend for the AmneziaWG tunnel configuration editor",
	Version:       version.Current().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configuration API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(version.Current().String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./config.yaml or /etc/amneziawg-webui/config.yaml)")

	serveCmd.Flags().String("addr", ":8091", "listen address")
	serveCmd.Flags().String("data-dir", "/data/amneziawg-webui", "directory holding the database and settings")
	serveCmd.Flags().String("log-level", "info", "log level (trace|debug|info|warn|error)")
	serveCmd.Flags().String("log-format", "text", "log format (text|json)")
	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("data.dir", serveCmd.Flags().Lookup("data-dir"))
	_ = v.BindPFlag("logs.level", serveCmd.Flags().Lookup("log-level"))
	_ = v.BindPFlag("logs.format", serveCmd.Flags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	if err := logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File}); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Data.Dir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	settingsManager := settings.NewManager(cfg.SettingsPath())
	storedSettings, err := settingsManager.Get()
	if err != nil {
		logs.Logger.Warnf("failed to load settings: %v", err)
	}

	authManager := auth.NewManager(settingsManager)
	if err := authManager.EnsureDefaults(); err != nil {
		return fmt.Errorf("initialise auth: %w", err)
	}

	diagLog := diaglog.New(cfg.DiagnosticsPath())
	defer diagLog.Close()
	if err := diagLog.Configure(storedSettings.DebugLog(), storedSettings.DebugLogLevel); err != nil {
		logs.Logger.Warnf("diagnostics logging configure warning: %v", err)
	}

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	repo, err := repository.NewStore(db)
	if err != nil {
		return err
	}

	listenAddr, err := util.ResolveListenAddress(cfg.Server.Addr, storedSettings.ListenInterface)
	if err != nil {
		logs.Logger.Warnf("unable to resolve listen interface %s: %v", storedSettings.ListenInterface, err)
	}

	srv := server.New(repo, authManager, settingsManager, diagLog)
	stop := make(chan struct{})
	go srv.StartBackground(stop)

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // event stream stays open
		IdleTimeout:  60 * time.Second,
	}
	httpServer.RegisterOnShutdown(srv.CloseStreams)

	errCh := make(chan error, 1)
	go func() {
		logs.Logger.WithField("addr", listenAddr).Info("amneziawg web ui listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logs.Logger.Info("shutting down...")
	case err := <-errCh:
		close(stop)
		return fmt.Errorf("http server error: %w", err)
	}
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Warnf("graceful shutdown error: %v", err)
	}
	return nil
}
