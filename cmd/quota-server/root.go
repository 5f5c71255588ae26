/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/acronis/go-quota/config"
	"github.com/acronis/go-quota/internal/libinfo"
	"github.com/acronis/go-quota/internal/server"
	"github.com/acronis/go-quota/log"
	"github.com/acronis/go-quota/lrucache"
	"github.com/acronis/go-quota/quota"
	"github.com/acronis/go-quota/restapi"
)

const (
	envVarsPrefix    = "QUOTA"
	metricsNamespace = "quota_server"
)

type appConfig struct {
	Log    *log.Config
	Quota  *quota.Config
	Server *server.Config
}

func newAppConfig() *appConfig {
	return &appConfig{Log: log.NewConfig(), Quota: quota.NewConfig(), Server: server.NewDefaultConfig()}
}

func (c *appConfig) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

func (c *appConfig) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}

func newRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "quota-server",
		Short:         "Per-caller quota service",
		Long:          "quota-server decides whether callers may make requests using a fixed window with a burst bonus or a continuously refilled token bucket.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			return runServer(cmd, cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file in YAML or JSON format (optional, defaults and QUOTA_* env vars are used otherwise)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (strategy: %s)\n", cfg.Quota.Strategy)
			return nil
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), libinfo.GetVersion())
		},
	})
	return rootCmd
}

func loadConfig(cfgFile string) (*appConfig, error) {
	cfg := newAppConfig()
	loader := config.NewDefaultLoader(envVarsPrefix)
	if cfgFile == "" {
		if err := loader.LoadFromReader(bytes.NewReader(nil), config.DataTypeYAML, cfg); err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		return cfg, nil
	}
	dataType := config.DataTypeYAML
	if strings.EqualFold(filepath.Ext(cfgFile), ".json") {
		dataType = config.DataTypeJSON
	}
	if err := loader.LoadFromFile(cfgFile, dataType, cfg); err != nil {
		return nil, fmt.Errorf("load configuration from %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, cfg *appConfig) error {
	logger, closeLogger := log.NewLogger(cfg.Log)
	defer closeLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	restapi.MustInitAndRegisterMetrics(metricsNamespace, reg)
	defer restapi.UnregisterMetrics(reg)

	quotaMetrics := quota.NewPrometheusMetricsWithOpts(quota.PrometheusMetricsOpts{
		Namespace:   metricsNamespace,
		ConstLabels: libinfo.AddPrometheusVersionLabel(nil),
	})
	quotaMetrics.MustRegister(reg)
	storeMetrics := lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{Namespace: metricsNamespace})
	storeMetrics.MustRegister(reg)

	limiter, err := quota.NewLimiterFromConfig(cfg.Quota,
		quota.LimiterOpts{MetricsCollector: quotaMetrics, Logger: logger},
		quota.LRUStoreOpts{MetricsCollector: storeMetrics})
	if err != nil {
		return fmt.Errorf("new limiter: %w", err)
	}

	srv, err := server.New(cfg.Server, limiter, logger, server.Opts{
		Gatherer:        reg,
		CleanupInterval: time.Duration(cfg.Quota.Store.CleanupInterval),
	})
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}
	if err = srv.Run(cmd.Context()); err != nil {
		logger.Error("quota server stopped with error", log.Error(err))
		return err
	}
	return nil
}
