// Package scheduler drives reconciliation engines: it assigns operation ids,
// retries transport failures with exponential back-off and makes sure a
// store is never validated twice at the same time.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/kaspanet/reorgkeeper/domain/reconciliation"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 300 * time.Second
)

// ErrValidationInProgress is returned when a store is already being
// validated
var ErrValidationInProgress = errors.New("validation already in progress")

// Validator is a single store's reconciliation engine
type Validator interface {
	Validate(ctx context.Context, operationID uint64) error
	StoreName() string
}

// Config holds the scheduler parameters
type Config struct {
	RetryStrategy RetryStrategy
	MinBackoff    time.Duration
	MaxBackoff    time.Duration
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		RetryStrategy: Limited(3),
		MinBackoff:    defaultMinBackoff,
		MaxBackoff:    defaultMaxBackoff,
	}
}

type storeValidator struct {
	validator Validator
	inFlight  sync.Mutex
}

// Scheduler runs the validators of several stores
type Scheduler struct {
	config          *Config
	validators      []*storeValidator
	validatorByName map[string]*storeValidator
	lastOperationID uint64
}

// New returns a Scheduler over validators. Validator store names must be
// unique.
func New(config *Config, validators ...Validator) (*Scheduler, error) {
	s := &Scheduler{
		config:          config,
		validators:      make([]*storeValidator, 0, len(validators)),
		validatorByName: make(map[string]*storeValidator, len(validators)),
	}
	for _, validator := range validators {
		name := validator.StoreName()
		if _, ok := s.validatorByName[name]; ok {
			return nil, errors.Errorf("duplicate store name %s", name)
		}
		entry := &storeValidator{validator: validator}
		s.validators = append(s.validators, entry)
		s.validatorByName[name] = entry
	}
	return s, nil
}

func (s *Scheduler) nextOperationID() uint64 {
	return atomic.AddUint64(&s.lastOperationID, 1)
}

// ValidateStore validates the named store, retrying according to the
// configured strategy. It returns ErrValidationInProgress if the store is
// already being validated.
func (s *Scheduler) ValidateStore(ctx context.Context, storeName string) error {
	entry, ok := s.validatorByName[storeName]
	if !ok {
		return errors.Errorf("unknown store %s", storeName)
	}
	return s.validate(ctx, entry)
}

func (s *Scheduler) validate(ctx context.Context, entry *storeValidator) error {
	if !entry.inFlight.TryLock() {
		return errors.Wrapf(ErrValidationInProgress, "store %s", entry.validator.StoreName())
	}
	defer entry.inFlight.Unlock()

	retryBackoff := &backoff.Backoff{
		Min:    s.config.MinBackoff,
		Max:    s.config.MaxBackoff,
		Factor: 2,
	}
	var failedAttempts uint32
	for {
		operationID := s.nextOperationID()
		err := entry.validator.Validate(ctx, operationID)
		if err == nil {
			return nil
		}
		failedAttempts++
		if !reconciliation.IsRetryable(err) || !s.config.RetryStrategy.allowsRetry(failedAttempts) {
			return err
		}

		delay := retryBackoff.Duration()
		log.Warnf("Validation %d of store %s failed, retrying in %s (attempt %d, %s): %s",
			operationID, entry.validator.StoreName(), delay, failedAttempts, s.config.RetryStrategy, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// ValidateAll validates every store concurrently and returns the first
// error. A store that is already being validated is skipped.
func (s *Scheduler) ValidateAll(ctx context.Context) error {
	group := &errgroup.Group{}
	for _, entry := range s.validators {
		entry := entry
		group.Go(func() error {
			err := s.validate(ctx, entry)
			if errors.Is(err, ErrValidationInProgress) {
				log.Debugf("Skipping store %s: %s", entry.validator.StoreName(), err)
				return nil
			}
			return err
		})
	}
	return group.Wait()
}

// Run validates all stores every interval until ctx is done. Failures are
// logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := s.ValidateAll(ctx)
		if err != nil && ctx.Err() == nil {
			log.Errorf("Validation round failed: %s", err)
		}
		select {
		case <-ctx.Done():
			log.Infof("Scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Start runs the scheduler in the background and returns a channel that
// is closed once it stopped
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	spawn("Scheduler.Start", func() {
		defer close(done)
		s.Run(ctx, interval)
	})
	return done
}
