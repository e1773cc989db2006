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

	"github.com/NethermindEth/masp/api/handlers"
	"github.com/NethermindEth/masp/communication"
	"github.com/NethermindEth/masp/config"
	"github.com/NethermindEth/masp/ledger"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/simulation"
	"github.com/NethermindEth/masp/store"
	"github.com/NethermindEth/masp/utils"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the simulation loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime(flags, "server")
			if err != nil {
				return err
			}
			defer log.Close()
			if port > 0 {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override MASP_PORT")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	writer := store.NewAsync(db, log.With("store"))
	defer writer.Close()

	var chain ledger.Client = ledger.LocalOnly{}
	if cfg.CometRPCURL != "" {
		comet, err := ledger.NewCometClient(cfg.CometRPCURL)
		if err != nil {
			return err
		}
		chain = comet
	}
	log.Ledger("mode", "%s %s", chain.Mode(), chain.Endpoint())

	publishers := communication.Fanout{communication.FeedLog{Path: cfg.FeedLog, Log: log}}
	natsURL := cfg.NatsURL
	if cfg.EmbeddedNats {
		ns, err := communication.StartEmbeddedServer("127.0.0.1", cfg.EmbeddedPort)
		if err != nil {
			return err
		}
		defer ns.Shutdown()
		if natsURL == "" {
			natsURL = ns.ClientURL()
		}
		log.System("nats", "embedded server at %s", ns.ClientURL())
	}
	if natsURL != "" {
		pub, err := communication.NewNatsPublisher(natsURL, cfg.SubjectPrefix, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		publishers = append(publishers, pub)
	}

	agentOpts, err := hostedOptions(cfg, log)
	if err != nil {
		return err
	}

	engine, err := simulation.New(
		simulation.Config{Seed: cfg.RandomSeed, StepInterval: cfg.StepInterval},
		simulation.WithLedger(chain),
		simulation.WithStore(writer),
		simulation.WithPublisher(publishers),
		simulation.WithLogger(log.With("engine")),
		simulation.WithAgentOptions(agentOpts...),
	)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer engine.FlushLedger()

	snap, err := db.Load(ctx)
	if err != nil {
		return err
	}
	if err := engine.Restore(ctx, snap); err != nil {
		return err
	}

	if engine.State().Agents == 0 && cfg.SeedFile != "" {
		if !utils.FileExists(cfg.SeedFile) {
			return fmt.Errorf("seed file %s not found", cfg.SeedFile)
		}
		seeds, err := config.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		n := seedAgents(ctx, engine, seeds, cfg.StrictProbe, log)
		log.System("seed", "created %d of %d agents from %s", n, len(seeds), cfg.SeedFile)
	}
	if engine.State().Agents > 0 {
		if err := engine.Start(cfg.StepInterval); err != nil {
			return err
		}
	}

	api := handlers.NewServer(engine, handlers.Options{
		AutoStartInterval: cfg.AutoStartInterval,
		StrictProbe:       cfg.StrictProbe,
		CORSOrigins:       cfg.CORSOrigins,
		FeedLog:           cfg.FeedLog,
		Log:               log.With("api"),
	})

	port := utils.FindAvailableAPIPort(cfg.Port)
	if port != cfg.Port {
		log.Warn(logger.SYSTEM, "port %d in use, using %d", cfg.Port, port)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.System("startup", "API listening on :%d (seed %d)", port, engine.Seed())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.System("shutdown", "stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
