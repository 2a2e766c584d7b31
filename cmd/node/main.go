// Command node runs a single Chord DHT ring member: it loads configuration,
// wires the routing table, storage, RPC client and HTTP transport together,
// joins (or founds) a ring, and serves until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chorddht/internal/bootstrap"
	"chorddht/internal/client"
	"chorddht/internal/config"
	"chorddht/internal/domain"
	"chorddht/internal/httpserver"
	"chorddht/internal/logger"
	zapfactory "chorddht/internal/logger/zap"
	"chorddht/internal/node"
	"chorddht/internal/routingtable"
	"chorddht/internal/storage"
	"chorddht/internal/telemetry"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog := zapfactory.New(cfg.Logger)
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	lis, err := cfg.Listen()
	if err != nil {
		lgr.Error("failed to initialize listener", logger.F("err", err))
		os.Exit(1)
	}
	defer func() { _ = lis.Close() }()

	host, err := cfg.ResolveHost()
	if err != nil {
		lgr.Error("failed to resolve advertised host", logger.F("err", err))
		os.Exit(1)
	}
	_, port, err := net.SplitHostPort(lis.Addr().String())
	if err != nil {
		lgr.Error("failed to determine listener port", logger.F("err", err))
		os.Exit(1)
	}
	advertised := net.JoinHostPort(host, port)
	lgr.Debug("listener bound", logger.F("bind", lis.Addr().String()), logger.F("advertised", advertised))

	space, err := domain.NewSpace(cfg.DHT.IDBits)
	if err != nil {
		lgr.Error("failed to initialize identifier space", logger.F("err", err))
		os.Exit(1)
	}

	var id domain.ID
	if cfg.Node.ID == "" {
		id = space.Hash(advertised)
	} else {
		id, err = space.FromHexString(cfg.Node.ID)
		if err != nil {
			lgr.Error("invalid node ID in configuration", logger.F("err", err))
			os.Exit(1)
		}
	}
	self := domain.NodeRef{ID: id, Addr: advertised}
	lgr = lgr.Named("node").With(logger.FNode("self", self))
	lgr.Info("node initializing")

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "chorddht-node", id)
	defer func() { _ = shutdownTracer(context.Background()) }()

	rt := routingtable.New(lgr.Named("routingtable"), space, self, cfg.DHT.FaultTolerance.SuccessorListSize)

	cli := client.New(space, &http.Client{Timeout: cfg.DHT.FaultTolerance.RPCTimeout})

	store := storage.New(lgr.Named("storage"))

	n := node.New(rt, store, cli, lgr, cfg.DHT.FaultTolerance.RPCTimeout)

	srv := httpserver.New(lis, n, httpserver.WithLogger(lgr.Named("httpserver")))
	var handler http.Handler = srv.Handler()
	if cfg.Telemetry.Tracing.Enabled {
		handler = httpserver.WrapTracing(handler, "chorddht.rpc")
		lgr.Debug("HTTP tracing enabled")
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(handler) }()
	lgr.Debug("server started")

	var reg bootstrap.Bootstrap
	switch cfg.DHT.Bootstrap.Mode {
	case "route53":
		reg, err = bootstrap.NewRoute53Bootstrap(cfg.DHT.Bootstrap.Route53)
		if err != nil {
			lgr.Error("failed to initialize Route53 bootstrap", logger.F("err", err))
			os.Exit(1)
		}
	case "static":
		reg = bootstrap.NewStaticBootstrap(cfg.DHT.Bootstrap.Peers)
	case "init":
		reg = bootstrap.NewStaticBootstrap(nil)
	default:
		lgr.Error("unsupported bootstrap mode", logger.F("mode", cfg.DHT.Bootstrap.Mode))
		os.Exit(1)
	}

	discoverCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	peers, err := reg.Discover(discoverCtx)
	cancel()
	if err != nil {
		lgr.Error("failed to resolve bootstrap peers", logger.F("err", err))
		os.Exit(1)
	}
	if len(peers) != 0 {
		joinCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := n.Join(joinCtx, peers[0])
		cancel()
		if err != nil {
			lgr.Error("failed to join ring", logger.F("err", err), logger.F("via", peers[0]))
			os.Exit(1)
		}
		lgr.Info("joined existing ring", logger.F("via", peers[0]))
	} else {
		lgr.Info("no peers discovered, founding new ring")
	}

	registerCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = reg.Register(registerCtx, self)
	cancel()
	if err != nil {
		lgr.Warn("failed to register node", logger.F("err", err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := reg.Deregister(ctx, self); err != nil {
				lgr.Warn("failed to deregister node", logger.F("err", err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	n.StartMaintenance(ctx, node.MaintenanceIntervals{
		Stabilize:        cfg.DHT.FaultTolerance.StabilizeInterval,
		FixFingers:       cfg.DHT.FaultTolerance.FixFingersInterval,
		CheckPredecessor: cfg.DHT.FaultTolerance.CheckPredecessorInterval,
	})
	lgr.Debug("maintenance loops started")

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received, stopping gracefully")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lgr.Warn("graceful shutdown timed out", logger.F("err", err))
		}

	case err := <-serveErr:
		lgr.Error("server terminated unexpectedly", logger.F("err", err))
		stop()
		os.Exit(1)
	}
}
