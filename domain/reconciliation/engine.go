// Package reconciliation keeps a wallet's tracked items in agreement with an
// authoritative chain oracle across reorganizations.
package reconciliation

import (
	"context"
	"fmt"

	"github.com/kaspanet/reorgkeeper/app/events"
	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/pkg/errors"
)

// Engine reconciles a tracked item store against a chain oracle. A single
// Engine must not run two validations of the same store concurrently; the
// scheduler enforces that.
type Engine struct {
	config    *Config
	store     trackeditem.Store
	connector oracle.Connector
	publisher events.Publisher
}

// New returns a new reconciliation Engine over store
func New(config *Config, store trackeditem.Store, connector oracle.Connector, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher()
	}
	return &Engine{
		config:    config,
		store:     store,
		connector: connector,
		publisher: publisher,
	}
}

// StoreName returns the name the engine reports in its events
func (e *Engine) StoreName() string {
	return e.config.StoreName
}

// Validate runs a single reconciliation pass tagged with operationID. On
// failure it returns a *ProtocolError. Every batch committed before a failure
// stays committed.
func (e *Engine) Validate(ctx context.Context, operationID uint64) error {
	e.publish(events.ValidationStarted, operationID, "")
	log.Debugf("Validation %d of store %s started", operationID, e.config.StoreName)

	run := &validationRun{engine: e, operationID: operationID}
	err := run.execute(ctx)

	if run.stateChanged {
		e.publish(events.ValidationStateChanged, operationID, "")
	}

	if err != nil {
		var protocolErr *ProtocolError
		if !errors.As(err, &protocolErr) {
			protocolErr = newProtocolError(operationID, ErrStorage, err)
		}
		if protocolErr.IsTimeout() {
			log.Warnf("Validation %d of store %s timed out: %s", operationID, e.config.StoreName, protocolErr)
			e.publish(events.ValidationTimedOut, operationID, protocolErr.Error())
		} else {
			log.Warnf("Validation %d of store %s failed: %s", operationID, e.config.StoreName, protocolErr)
			e.publish(events.ValidationFailed, operationID, protocolErr.Error())
		}
		return protocolErr
	}

	log.Debugf("Validation %d of store %s completed", operationID, e.config.StoreName)
	e.publish(events.ValidationCompleted, operationID, "")
	return nil
}

func (e *Engine) publish(eventType events.EventType, operationID uint64, reason string) {
	event := events.NewEvent(eventType, operationID, e.config.StoreName)
	event.Reason = reason
	e.publisher.Publish(event)
}

// validationRun holds the state of a single Validate invocation
type validationRun struct {
	engine       *Engine
	operationID  uint64
	oracle       oracle.ChainOracle
	stateChanged bool
}

func (r *validationRun) execute(ctx context.Context) error {
	chainOracle, err := r.engine.connector.Connect(ctx)
	if err != nil {
		if oracle.IsTransportError(err) {
			return r.fail(ErrTransport, err)
		}
		return r.fail(ErrShutdown, err)
	}
	if chainOracle == nil {
		return r.fail(ErrShutdown, errors.New("connector returned no oracle"))
	}
	r.oracle = chainOracle

	items, anchor, err := r.reorgCheck(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Debugf("Validation %d: no tracked items", r.operationID)
		return nil
	}

	err = r.locationQuery(ctx, items)
	if err != nil {
		return err
	}
	return r.spentStatusQuery(ctx, items, anchor)
}

func (r *validationRun) phaseName(phase string) string {
	return fmt.Sprintf("Validation %d of store %s: %s", r.operationID, r.engine.config.StoreName, phase)
}

func (r *validationRun) fail(kind error, err error) error {
	return newProtocolError(r.operationID, kind, err)
}

// callOracle runs call under the per-call deadline. Transport failures are
// retryable. Any other failure means the oracle answered with something
// unusable.
func (r *validationRun) callOracle(ctx context.Context, call func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, r.engine.config.OracleCallTimeout)
	defer cancel()

	err := call(callCtx)
	if err == nil {
		return nil
	}
	if oracle.IsTransportError(err) {
		return r.fail(ErrTransport, err)
	}
	if !oracle.IsMalformedResponse(err) {
		log.Warnf("Validation %d: unclassified oracle error: %s", r.operationID, err)
	}
	return r.fail(ErrInconsistentData, err)
}

// commit writes stagingArea to the store if it holds anything
func (r *validationRun) commit(stagingArea *trackeditem.StagingArea) error {
	if stagingArea.IsEmpty() {
		return nil
	}
	err := r.engine.store.Commit(stagingArea)
	if err != nil {
		return r.fail(ErrStorage, err)
	}
	log.Debugf("Validation %d: committed %d items", r.operationID, stagingArea.Len())
	r.stateChanged = true
	return nil
}

// updateItem replaces the status and position of item and stages it if
// anything differs
func updateItem(stagingArea *trackeditem.StagingArea, item *trackeditem.TrackedItem,
	status trackeditem.Status, mmrPosition *uint64) {

	updated := item.Clone()
	updated.Status = status
	updated.MMRPosition = mmrPosition
	if updated.Equal(item) {
		return
	}
	log.Tracef("Item %s: %s -> %s", item.ID, item.Status, status)
	*item = *updated
	stagingArea.Stage(item)
}

func batches(length int, batchSize int) [][2]int {
	if batchSize <= 0 {
		batchSize = length
	}
	var result [][2]int
	for start := 0; start < length; start += batchSize {
		end := start + batchSize
		if end > length {
			end = length
		}
		result = append(result, [2]int{start, end})
	}
	return result
}
