package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/automation"
	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/extract"
	"github.com/Sriram-PR/price-reconciler/pkg/fetch"
	"github.com/Sriram-PR/price-reconciler/pkg/metrics"
	"github.com/Sriram-PR/price-reconciler/pkg/remote"
	"github.com/Sriram-PR/price-reconciler/pkg/search"
	"github.com/Sriram-PR/price-reconciler/pkg/storage"
)

// gcInterval is how often badger value-log GC runs while the process is up
const gcInterval = 10 * time.Minute

// Runtime is a fully wired orchestrator plus the resources it owns
type Runtime struct {
	*Orchestrator
	State  *storage.BadgerStore
	Remote remote.Store
	cancel context.CancelFunc
}

// Close stops background work and releases the state directory lock
func (rt *Runtime) Close() error {
	rt.cancel()
	if closer, ok := rt.Remote.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			rt.log.Warnf("Closing remote store: %v", err)
		}
	}
	return rt.State.Close()
}

// schemaEnsurer is implemented by remote stores that own their schema
type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// Build wires the production collaborators for appCfg. configPath is handed to the
// automation worker so it reads the same configuration. m may be nil.
func Build(ctx context.Context, appCfg config.AppConfig, configPath string, m *metrics.Metrics, log *logrus.Entry) (*Runtime, error) {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	client := fetch.NewClient(appCfg.HTTPClientSettings, log.WithField("component", "http"))
	fetcher := fetch.NewFetcher(client, log.WithField("component", "fetcher"))
	extractor := extract.NewHTTPExtractor(fetcher, appCfg, log.WithField("component", "extractor"))

	searcher, err := search.New(ctx, appCfg.Search, client, log.WithField("component", "search"))
	if err != nil {
		cancel()
		return nil, err
	}

	state, err := storage.NewBadgerStore(bgCtx, appCfg.StateDir, log.WithField("component", "state"))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open shared state (is another run using %s?): %w", appCfg.StateDir, err)
	}
	go state.RunGC(bgCtx, gcInterval)

	rs, err := remote.New(appCfg.Remote, log.WithField("component", "remote"))
	if err != nil {
		cancel()
		_ = state.Close()
		return nil, err
	}
	if se, ok := rs.(schemaEnsurer); ok {
		if err := se.EnsureSchema(ctx); err != nil {
			log.Warnf("Remote schema check failed, loads will fall back to shared state: %v", err)
		}
	}

	newWorker, err := workerFactory(appCfg, configPath, log.WithField("component", "automation"))
	if err != nil {
		log.Warnf("Automation worker unavailable: %v", err)
	}

	o, err := New(Deps{
		Config:      appCfg,
		Extractor:   extractor,
		Searcher:    searcher,
		Snapshots:   state,
		Runs:        state,
		Remote:      rs,
		NewWorker:   newWorker,
		RateLimiter: fetch.NewRateLimiter(0, log.WithField("component", "ratelimit")),
		HostLimits:  fetch.NewHostSemaphorePool(appCfg.Workers, log.WithField("component", "hostlimit")),
		Metrics:     m,
		Log:         log,
	})
	if err != nil {
		cancel()
		_ = state.Close()
		return nil, err
	}
	return &Runtime{Orchestrator: o, State: state, Remote: rs, cancel: cancel}, nil
}

// workerFactory returns a constructor for the automation worker process
func workerFactory(appCfg config.AppConfig, configPath string, log *logrus.Entry) (func() WorkerChannel, error) {
	comp, ok := appCfg.BrowserCompetitor()
	if !ok {
		return nil, nil
	}
	argv := appCfg.Automation.WorkerCommand
	if len(argv) == 0 {
		var err error
		if argv, err = automation.DefaultCommand(configPath); err != nil {
			return nil, err
		}
	}
	a := appCfg.Automation
	opts := automation.Options{
		Command:      argv,
		Domain:       comp.Domain,
		StartupGrace: a.StartupGrace,
		JoinGrace:    a.JoinGrace,
		KillGrace:    a.KillGrace,
	}
	return func() WorkerChannel {
		return automation.NewProcessChannel(opts, log)
	}, nil
}
