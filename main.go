package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evidenceledger/ledgergateway/internal/config"
	"github.com/evidenceledger/ledgergateway/internal/server"
)

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"host":           "server.host",
	"port":           "server.port",
	"ops-port":       "server.opsPort",
	"profile":        "network.profile",
	"crypto-dir":     "crypto.dir",
	"wallet-backend": "wallet.backend",
	"log-level":      "log.level",
}

func main() {
	v := config.New()

	var configFile string

	rootCmd := &cobra.Command{
		Use:          "ledgergateway",
		Short:        "REST gateway to a Hyperledger Fabric network",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, configFile)
		},
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().String("host", "", "Host the API listens on")
	rootCmd.Flags().StringP("port", "p", "", "Port for the API server")
	rootCmd.Flags().String("ops-port", "", "Port for the /health and /metrics server")
	rootCmd.Flags().String("profile", "", "Connection profile of the network")
	rootCmd.Flags().String("crypto-dir", "", "Root of the generated crypto material")
	rootCmd.Flags().String("wallet-backend", "", "Wallet backend: filesystem, sqlite or leveldb")
	rootCmd.Flags().String("log-level", "", "Log level: debug, info, warn or error")

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, rootCmd.Flags().Lookup(flag)); err != nil {
			slog.Error("Failed to bind flag", "flag", flag, "error", err)
			os.Exit(1)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(v *viper.Viper, configFile string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return err
	}

	// Initialize logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	// Create the main server. This will initialize the ledger client and the wallet backend.
	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		return err
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received")
		cancel()
	}()

	// Start server
	if err := srv.Start(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		return err
	}
	return nil
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
