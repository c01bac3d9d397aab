// Command corvus-echo is the reference example binary for corvus: a
// cobra root with a handful of subcommands, each loading internal/config
// the same way a long-running daemon command would (the file named by
// --config, then CORVUS_* env), wiring
// internal/logging/internal/tracing/internal/metrics before touching the
// framework itself.
//
// corvus-echo's subcommands don't manage external state — they
// demonstrate the framework: "serve" hosts the Greeter contract
// behind whichever reference endpoints the config enables, and "demo"
// hosts it in-process and immediately drives it with a duplex inproc
// client, printing the call result and the callback event it triggers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/oriys/corvus"
	"github.com/oriys/corvus/audit/postgres"
	"github.com/oriys/corvus/inproc"
	"github.com/oriys/corvus/internal/config"
	"github.com/oriys/corvus/internal/logging"
	"github.com/oriys/corvus/internal/metrics"
	"github.com/oriys/corvus/internal/tracing"
	"github.com/oriys/corvus/store/redis"
	grpctransport "github.com/oriys/corvus/transport/grpc"
	vsocktransport "github.com/oriys/corvus/transport/vsock"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "corvus-echo",
		Short: "corvus reference example: a duplex Greeter/Listener contract",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (optional)")
	root.AddCommand(serveCmd(), demoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "corvus-echo: load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	return cfg
}

func initObservability(ctx context.Context, cfg *config.Config) *metrics.Metrics {
	logging.SetLevelFromString(cfg.Logging.Level)
	logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

	if err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	}); err != nil {
		logging.Op().Warn("tracing init failed, continuing without it", "error", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}
	return m
}

// sessionRecord is the payload corvus-echo asks its SessionFactory to
// mint and persist for every session, demonstrating the round trip
// through a corvus.SessionStore (see buildHost's Redis wiring below).
// greeterService itself is a Singleton and never reads it back.
type sessionRecord struct {
	ConnectedAt time.Time `json:"connected_at"`
}

// buildHost assembles the ServiceHost bound to greeterContract and every
// reference endpoint cfg enables. The inproc endpoint is always present:
// it is what the "demo" subcommand's own client connects to. The
// returned func releases whatever optional domain-stack resources
// buildHost opened (a Postgres pool, a Redis client); callers must defer
// it.
func buildHost(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*corvus.ServiceHost[greeterService], func()) {
	var observer corvus.DispatchObserver
	var sessionFactory corvus.SessionFactory = corvus.UUIDSessionFactory{}
	var closers []func()

	if cfg.Postgres.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			logging.Op().Warn("postgres dispatch audit log disabled: connect failed", "error", err)
		} else {
			batcher := postgres.NewBatcher(pool, postgres.BatcherConfig{})
			observer = batcher
			closers = append(closers, func() {
				batcher.Shutdown(5 * time.Second)
				pool.Close()
			})
		}
	}

	if cfg.Redis.Enabled {
		store := redis.New(redis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		sessionFactory = corvus.StoredSessionFactory{
			Store: store,
			TTL:   cfg.Session.CacheTTL,
			NewPayload: func(string) any {
				return sessionRecord{ConnectedAt: time.Now().UTC()}
			},
			NewLoaded: func(data []byte) (any, error) {
				var rec sessionRecord
				if err := json.Unmarshal(data, &rec); err != nil {
					return nil, err
				}
				return rec, nil
			},
		}
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logging.Op().Warn("redis session store close failed", "error", err)
			}
		})
	}

	inprocEP := &inproc.Endpoint[greeterService]{
		Name:             "corvus-echo/greeter",
		Contract:         greeterContract,
		NewDispatcher:    newGreeterDispatcher,
		NewCallbackProxy: newGreeterCallbackProxy,
		Metrics:          m,
		Observer:         observer,
	}
	host := corvus.NewServiceHost[greeterService](corvus.NewSingleton(greeterService{})).
		WithSessionFactory(sessionFactory).
		WithEndpoint(inprocEP)

	if cfg.GRPC.Enabled {
		host = host.WithEndpoint(&grpctransport.Endpoint[greeterService]{
			Addr:          cfg.GRPC.Addr,
			Contract:      greeterContract,
			NewDispatcher: newGreeterDispatcher,
			Observer:      observer,
		})
	}
	if cfg.Vsock.Enabled {
		host = host.WithEndpoint(&vsocktransport.Endpoint[greeterService]{
			Port:          cfg.Vsock.Port,
			Contract:      greeterContract,
			NewDispatcher: newGreeterDispatcher,
			Observer:      observer,
		})
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return host, cleanup
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the Greeter host until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			m := initObservability(ctx, cfg)
			host, cleanup := buildHost(ctx, cfg, m)
			defer cleanup()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logging.Op().Info("shutdown signal received")
				cancel()
			}()

			logging.Op().Info("corvus-echo serving", "grpc", cfg.GRPC.Enabled, "vsock", cfg.Vsock.Enabled)
			return host.Run(ctx)
		},
	}
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "host the Greeter contract in-process and call it once over a duplex connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			m := initObservability(ctx, cfg)
			host, cleanup := buildHost(ctx, cfg, m)
			defer cleanup()

			errCh := make(chan error, 1)
			go func() { errCh <- host.Run(ctx) }()
			if err := waitForEndpoint(ctx, "corvus-echo/greeter"); err != nil {
				return err
			}

			listener := newLoggingListener()
			client := &inproc.Client[greeterService]{Name: "corvus-echo/greeter"}
			conn, err := client.ConnectDuplex(ctx, greeterContract, newListenerDispatcher(listener))
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Proxy.Close()

			proxy := greeterProxy{conn.Proxy}
			reply, err := proxy.Greet(ctx, "ada")
			if err != nil {
				return fmt.Errorf("Greet: %w", err)
			}
			fmt.Printf("Greet(\"ada\") = %q\n", reply)

			select {
			case event := <-listener.events:
				fmt.Printf("callback received: %s\n", event)
			case <-ctx.Done():
				return fmt.Errorf("timed out waiting for callback: %w", ctx.Err())
			}

			cancel()
			<-errCh
			return nil
		},
	}
}

func waitForEndpoint(ctx context.Context, name string) error {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if inproc.Registered(name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return fmt.Errorf("endpoint %q never registered", name)
}
