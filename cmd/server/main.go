package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"neuramark/internal/anchor"
	"neuramark/internal/blob"
	didhandler "neuramark/internal/did/handler"
	didmodels "neuramark/internal/did/models"
	didservice "neuramark/internal/did/service"
	"neuramark/internal/did/store/record"
	"neuramark/internal/did/syncer"
	"neuramark/internal/ownership"
	"neuramark/internal/platform/config"
	"neuramark/internal/platform/httpserver"
	"neuramark/internal/platform/logger"
	"neuramark/internal/platform/metrics"
	"neuramark/internal/platform/postgres"
	redisclient "neuramark/internal/platform/redis"
	proofservice "neuramark/internal/proof/service"
	proofstore "neuramark/internal/proof/store"
	httptransport "neuramark/internal/transport/http"
	vchandler "neuramark/internal/vc/handler"
	"neuramark/internal/vc/issuer"
	vcservice "neuramark/internal/vc/service"
	"neuramark/internal/vc/signer"
	vcstore "neuramark/internal/vc/store"
	"neuramark/internal/vc/verifier"
	"neuramark/pkg/platform/circuit"
	"neuramark/pkg/platform/retry"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// proofStore is satisfied by both proof store adapters.
type proofStore interface {
	proofservice.Store
	ownership.OwnerStore
}

type infra struct {
	db     *sqlx.DB
	redis  *redisclient.Client
	blobs  didservice.BlobStore
	anchor anchor.Source
	pub    syncer.Publisher
	closes []func()
}

func (i *infra) close() {
	for n := len(i.closes) - 1; n >= 0; n-- {
		i.closes[n]()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	inf, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer inf.close()

	policy := retry.Policy{
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		MaxAttempts:     cfg.Retry.MaxAttempts,
	}

	var (
		records didservice.RecordStore = record.NewInMemory()
		proofs  proofStore             = proofstore.NewInMemory()
		creds   vcservice.Store        = vcstore.NewInMemory()
	)
	if inf.db != nil {
		records = record.NewPostgres(inf.db)
		proofs = proofstore.NewPostgres(inf.db)
		creds = vcstore.NewPostgres(inf.db)
	}

	dids := didservice.New(records, inf.blobs,
		didservice.WithLogger(log),
		didservice.WithMetrics(m),
		didservice.WithNamespace(cfg.Identity.Namespace),
		didservice.WithMaxAttempts(cfg.Retry.MaxMutationAttempts),
		didservice.WithRetryPolicy(policy),
	)
	proofSvc := proofservice.New(proofs, proofservice.WithLogger(log), proofservice.WithRetryPolicy(policy))

	keys, err := signingKeys(cfg.Identity, log)
	if err != nil {
		return err
	}
	iss := issuer.New(keys, didmodels.IssuerDID(cfg.Identity.Namespace), cfg.Identity.IssuerName)
	log.Info("credential issuer ready", "issuer_did", iss.DID(), "issuer_address", iss.Address())

	credentials := vcservice.New(vcservice.Deps{
		Proofs:   proofSvc,
		DIDs:     dids,
		Owners:   ownership.New(proofs, ownership.WithLogger(log), ownership.WithMetrics(m), ownership.WithRetryPolicy(policy)),
		Anchors:  inf.anchor,
		Issuer:   iss,
		Verifier: verifier.New(iss.DID(), iss.Address()),
		Store:    creds,
	}, vcservice.WithLogger(log), vcservice.WithMetrics(m), vcservice.WithRetryPolicy(policy))

	worker := syncer.NewWorker(dids, inf.pub,
		syncer.WithLogger(log),
		syncer.WithMetrics(m),
		syncer.WithQueueSize(cfg.Retry.SyncQueueSize),
	)

	checks := map[string]httptransport.HealthCheck{}
	if inf.db != nil {
		checks["postgres"] = inf.db.PingContext
	}
	if inf.redis != nil {
		checks["redis"] = inf.redis.Health
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:  log,
		Metrics: m,
		Handlers: []httptransport.RouteRegistrar{
			didhandler.New(dids, proofSvc, worker, log),
			vchandler.New(credentials, log),
		},
		Checks: checks,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting neuramark", "addr", cfg.Server.Addr, "namespace", cfg.Identity.Namespace)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if n := worker.Pending(); n > 0 {
			log.Warn("did sync tasks abandoned at shutdown", "pending", n)
		}
		return nil
	})
	return g.Wait()
}

// connect opens the optional infrastructure. Each adapter falls back to its
// in-process implementation when its connection setting is empty.
func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	inf := &infra{}
	fail := func(err error) (*infra, error) {
		inf.close()
		return nil, err
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return fail(err)
	}
	if db != nil {
		inf.db = db
		inf.closes = append(inf.closes, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return fail(err)
		}
	} else {
		log.Warn("NEURAMARK_DATABASE_URL not set, using in-memory stores")
	}

	if cfg.Blob.Endpoint != "" {
		store, err := blob.NewMinio(ctx, cfg.Blob)
		if err != nil {
			return fail(err)
		}
		inf.blobs = store
	} else {
		log.Warn("NEURAMARK_MINIO_ENDPOINT not set, DID documents are kept in memory")
		inf.blobs = blob.NewInMemoryStore()
	}

	var source anchor.Source
	if cfg.Chain.RPCURL != "" {
		eth, err := anchor.DialEth(ctx, cfg.Chain.RPCURL, cfg.Chain.Network, cfg.Chain.ContractAddress)
		if err != nil {
			return fail(err)
		}
		source = anchor.NewFailover(eth,
			anchor.NewStatic(cfg.Chain.Network, cfg.Chain.ContractAddress),
			circuit.New("chain-rpc"),
			log,
		)
	} else {
		source = anchor.NewStatic(cfg.Chain.Network, cfg.Chain.ContractAddress)
	}

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return fail(err)
	}
	if rc != nil {
		inf.redis = rc
		inf.closes = append(inf.closes, func() { _ = rc.Close() })
		source = anchor.NewCached(source, rc.Client, log)
	}
	inf.anchor = source

	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := syncer.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fail(err)
		}
		inf.closes = append(inf.closes, pub.Close)
		inf.pub = pub
	} else {
		inf.pub = syncer.NewLogPublisher(log)
	}
	return inf, nil
}

func signingKeys(cfg config.Identity, log *slog.Logger) (*signer.KeyProvider, error) {
	if cfg.SigningKeyHex != "" {
		return signer.NewKeyProvider(cfg.SigningKeyHex)
	}
	log.Warn("NEURAMARK_SIGNING_KEY not set, generated an ephemeral issuer key; credentials will not verify after restart")
	return signer.GenerateKeyProvider()
}
