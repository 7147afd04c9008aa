package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kaspanet/reorgkeeper/app/events"
	"github.com/kaspanet/reorgkeeper/app/scheduler"
	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/reconciliation"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/kaspanet/reorgkeeper/infrastructure/config"
	"github.com/kaspanet/reorgkeeper/infrastructure/db/database"
	"github.com/kaspanet/reorgkeeper/infrastructure/network/oracle/grpcoracle"
	"github.com/kaspanet/reorgkeeper/util/panics"
	"github.com/pkg/errors"
)

const redisPingTimeout = 5 * time.Second

// ComponentManager is a wrapper for all the reconciler services
type ComponentManager struct {
	cfg         *config.Config
	connector   oracle.Connector
	eventBus    *events.EventBus
	redisMirror *events.RedisMirror
	scheduler   *scheduler.Scheduler

	cancel        context.CancelFunc
	schedulerDone <-chan struct{}
	eventLogDone  chan struct{}

	started, shutdown int32
}

// Start launches all the reconciler services.
func (a *ComponentManager) Start() {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return
	}

	log.Trace("Starting reconciler")

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	subscriberID, subscription := a.eventBus.Subscribe()
	a.eventLogDone = make(chan struct{})
	spawn("ComponentManager.logEvents", func() {
		defer close(a.eventLogDone)
		defer a.eventBus.Unsubscribe(subscriberID)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-subscription:
				if event.Type == events.ValidationFailed || event.Type == events.ValidationTimedOut {
					log.Warnf("%s", event)
					continue
				}
				log.Debugf("%s", event)
			}
		}
	})

	a.schedulerDone = a.scheduler.Start(ctx, a.cfg.Interval)
}

// Stop gracefully shuts down all the reconciler services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("Reconciler is already in the process of shutting down")
		return
	}

	log.Warnf("Reconciler shutting down")

	if a.cancel != nil {
		a.cancel()
		<-a.schedulerDone
		<-a.eventLogDone
	}

	if closer, ok := a.connector.(*grpcoracle.Connector); ok {
		err := closer.Close()
		if err != nil {
			log.Errorf("Error closing the oracle connection: %+v", err)
		}
	}
	if a.redisMirror != nil {
		err := a.redisMirror.Close()
		if err != nil {
			log.Errorf("Error closing the redis mirror: %+v", err)
		}
	}
}

// NewComponentManager returns a new ComponentManager instance. db may be nil
// for in-memory stores. Use Start() to begin all services within this
// ComponentManager.
func NewComponentManager(cfg *config.Config, db database.Database) (*ComponentManager, error) {
	eventBus := events.NewEventBus()
	publishers := events.Publishers{eventBus}

	var redisMirror *events.RedisMirror
	if cfg.RedisURL != "" {
		var err error
		redisMirror, err = events.NewRedisMirror(cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		err = redisMirror.Ping(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "redis server at %s is unreachable", cfg.RedisURL)
		}
		publishers = append(publishers, redisMirror)
		log.Infof("Mirroring validation events to redis channel %s", cfg.RedisChannel)
	}

	connector := grpcoracle.NewConnector(cfg.OracleAddress, grpcoracle.DialOptions(cfg.Proxy)...)

	validators := make([]scheduler.Validator, len(cfg.Stores))
	for i, storeName := range cfg.Stores {
		var store trackeditem.Store
		if db == nil {
			store = trackeditem.NewMemoryStore()
		} else {
			store = trackeditem.NewDatabaseStore(db, storeName)
		}
		validators[i] = reconciliation.New(cfg.ReconciliationConfig(storeName), store, connector, publishers)
	}

	validationScheduler, err := scheduler.New(cfg.SchedulerConfig(), validators...)
	if err != nil {
		return nil, err
	}

	return &ComponentManager{
		cfg:         cfg,
		connector:   connector,
		eventBus:    eventBus,
		redisMirror: redisMirror,
		scheduler:   validationScheduler,
	}, nil
}

// ValidateNow runs one validation round over all stores
func (a *ComponentManager) ValidateNow(ctx context.Context) error {
	defer panics.HandlePanic(log, "ComponentManager.ValidateNow", nil)

	err := a.scheduler.ValidateAll(ctx)
	if err != nil {
		return errors.Wrapf(err, "validation round over %d stores failed", len(a.cfg.Stores))
	}
	return nil
}
