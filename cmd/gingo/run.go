package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cuemby/gingo/pkg/api"
	"github.com/cuemby/gingo/pkg/config"
	"github.com/cuemby/gingo/pkg/connector"
	"github.com/cuemby/gingo/pkg/connector/containerd"
	"github.com/cuemby/gingo/pkg/connector/local"
	"github.com/cuemby/gingo/pkg/connector/runpod"
	"github.com/cuemby/gingo/pkg/events"
	"github.com/cuemby/gingo/pkg/health"
	"github.com/cuemby/gingo/pkg/log"
	"github.com/cuemby/gingo/pkg/metrics"
	"github.com/cuemby/gingo/pkg/reconciler"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	Long: `Run the controller for every cluster in the clusters file.

Settings are read from the optional --config file and GINGO_* environment
variables. The clusters file is watched and re-applied on change unless
watching is disabled.`,
	RunE: runController,
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Path to the settings file")
	runCmd.Flags().StringP("clusters", "f", "", "Path to the clusters file (overrides settings)")
	runCmd.Flags().String("listen", "", "Address of the health, metrics and state API (overrides settings)")
	runCmd.Flags().String("connector", "", "Backend kind: local, containerd or runpod (overrides settings)")
	runCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides settings)")
}

// loadSettings merges the settings file, the environment and the command
// line flags, in increasing order of precedence
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	v := config.NewViper()

	for key, flag := range map[string]string{
		"clusters_file":  "clusters",
		"listen_addr":    "listen",
		"connector.kind": "connector",
		"log_level":      "log-level",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	path, _ := cmd.Flags().GetString("config")
	return config.LoadSettings(v, path)
}

func runController(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(settings.LogLevel),
		JSONOutput: settings.LogJSON,
		Output:     os.Stdout,
	})
	logger := log.WithComponent("main")
	metrics.SetVersion(Version)

	file, err := config.LoadClusters(settings.ClustersFile)
	if err != nil {
		return err
	}
	checkers, err := file.Checkers()
	if err != nil {
		return err
	}

	conn, err := newConnector(settings.Connector)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentConnector, false, err.Error())
		return err
	}
	if closer, ok := conn.(io.Closer); ok {
		defer closer.Close()
	}
	metrics.UpdateComponent(metrics.ComponentConnector, true, settings.Connector.Kind)

	router := health.NewRouter(nil)
	router.Replace(checkers)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go logEvents(sub)

	recon, err := reconciler.NewReconciler(conn, newHooks(router), reconciler.WithBroker(broker))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := recon.Start(ctx, file.Configs()); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	defer recon.Stop()
	logger.Info().
		Str("connector", settings.Connector.Kind).
		Int("clusters", len(file.Clusters)).
		Msg("Reconciler started")

	collector := metrics.NewCollector(recon, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	if settings.Watch {
		watcher, err := config.NewWatcher(settings.ClustersFile, reloader(ctx, recon, router), config.DefaultDebounce)
		if err != nil {
			metrics.UpdateComponent(metrics.ComponentWatcher, false, err.Error())
			return err
		}
		watcher.Start()
		defer watcher.Stop()
		metrics.UpdateComponent(metrics.ComponentWatcher, true, settings.ClustersFile)
	}

	apiServer := api.NewServer(recon)
	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(settings.ListenAddr); err != nil {
			errCh <- fmt.Errorf("API server error: %w", err)
		}
	}()
	logger.Info().Str("addr", settings.ListenAddr).Msg("API server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("API server shutdown failed")
	}

	return runErr
}

// reloader applies a changed clusters file. The probe router is swapped
// inside the reconfiguration barrier, so no cycle sees new checkers with
// old configs and a rejected file leaves both untouched.
func reloader(ctx context.Context, recon *reconciler.Reconciler, router *health.Router) config.ReloadFunc {
	return func(f *config.ClustersFile) error {
		checkers, err := f.Checkers()
		if err != nil {
			return err
		}
		return recon.SetClusterConfigsFunc(ctx, f.Configs(), func() {
			router.Replace(checkers)
		})
	}
}

// newConnector builds the backend selected in settings
func newConnector(s config.ConnectorSettings) (connector.Connector, error) {
	switch s.Kind {
	case config.ConnectorLocal:
		return local.New(s.DataDir, local.WithBootDelay(s.BootDelay))
	case config.ConnectorContainerd:
		return containerd.New(s.Socket, s.Namespace)
	case config.ConnectorRunPod:
		return runpod.New(s.APIKey, runpod.WithEndpoint(s.Endpoint))
	default:
		return nil, fmt.Errorf("unknown connector kind %q", s.Kind)
	}
}

// newHooks routes probes to the configured checkers and logs the
// notifications
func newHooks(router *health.Router) types.Hooks {
	return types.Hooks{
		CheckPodHealth: router.Check,
		OnPodListUpdate: func(ctx context.Context, cfg types.ClusterConfig, podIDs []string) {
			logger := log.WithClusterID(cfg.ID)
			logger.Info().
				Int("usable", len(podIDs)).
				Str("pods", strings.Join(podIDs, ",")).
				Msg("Usable pods updated")
		},
		AfterPodStart: func(ctx context.Context, cfg types.ClusterConfig, podID string) {
			logger := log.WithPod(cfg.ID, podID)
			logger.Info().Msg("Pod started")
		},
		AfterPodRestart: func(ctx context.Context, cfg types.ClusterConfig, podID string) {
			logger := log.WithPod(cfg.ID, podID)
			logger.Info().Msg("Pod restarted")
		},
	}
}

func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for event := range sub {
		logger.Debug().
			Str("type", string(event.Type)).
			Str("cluster_id", event.ClusterID).
			Str("pod_id", event.PodID).
			Msg(event.Message)
	}
}
