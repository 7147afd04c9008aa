package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kaspanet/reorgkeeper/app/events"
	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/reconciliation"
	"github.com/kaspanet/reorgkeeper/domain/simchain"
	"github.com/kaspanet/reorgkeeper/domain/testutils"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	name         string
	failures     int
	failureKind  error
	block        chan struct{}
	mtx          sync.Mutex
	operationIDs []uint64
}

func (v *fakeValidator) StoreName() string {
	return v.name
}

func (v *fakeValidator) Validate(ctx context.Context, operationID uint64) error {
	v.mtx.Lock()
	v.operationIDs = append(v.operationIDs, operationID)
	attempt := len(v.operationIDs)
	v.mtx.Unlock()

	if v.block != nil {
		<-v.block
	}
	if attempt <= v.failures {
		return &reconciliation.ProtocolError{
			OperationID: operationID,
			Kind:        v.failureKind,
			Err:         errors.New("test failure"),
		}
	}
	return nil
}

func (v *fakeValidator) calls() []uint64 {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return append([]uint64(nil), v.operationIDs...)
}

func testConfig(strategy RetryStrategy) *Config {
	return &Config{
		RetryStrategy: strategy,
		MinBackoff:    time.Millisecond,
		MaxBackoff:    5 * time.Millisecond,
	}
}

func TestRetryStrategies(t *testing.T) {
	tests := []struct {
		name          string
		strategy      RetryStrategy
		failures      int
		failureKind   error
		expectedCalls int
		expectedErr   error
	}{
		{
			name:          "limited gives up",
			strategy:      Limited(2),
			failures:      10,
			failureKind:   reconciliation.ErrTransport,
			expectedCalls: 3,
			expectedErr:   reconciliation.ErrTransport,
		},
		{
			name:          "limited succeeds",
			strategy:      Limited(2),
			failures:      2,
			failureKind:   reconciliation.ErrTransport,
			expectedCalls: 3,
		},
		{
			name:          "no retries",
			strategy:      Limited(0),
			failures:      1,
			failureKind:   reconciliation.ErrTransport,
			expectedCalls: 1,
			expectedErr:   reconciliation.ErrTransport,
		},
		{
			name:          "until success",
			strategy:      UntilSuccess(),
			failures:      6,
			failureKind:   reconciliation.ErrTransport,
			expectedCalls: 7,
		},
		{
			name:          "inconsistent data is not retried",
			strategy:      UntilSuccess(),
			failures:      1,
			failureKind:   reconciliation.ErrInconsistentData,
			expectedCalls: 1,
			expectedErr:   reconciliation.ErrInconsistentData,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			validator := &fakeValidator{name: "wallet", failures: test.failures, failureKind: test.failureKind}
			s, err := New(testConfig(test.strategy), validator)
			require.NoError(t, err)

			err = s.ValidateStore(context.Background(), "wallet")
			if test.expectedErr == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, test.expectedErr))
			}

			calls := validator.calls()
			require.Len(t, calls, test.expectedCalls)
			for i := 1; i < len(calls); i++ {
				assert.Greater(t, calls[i], calls[i-1])
			}
		})
	}
}

func TestDuplicateStoreNames(t *testing.T) {
	_, err := New(DefaultConfig(), &fakeValidator{name: "a"}, &fakeValidator{name: "a"})
	require.Error(t, err)
}

func TestSingleFlightPerStore(t *testing.T) {
	validator := &fakeValidator{name: "wallet", block: make(chan struct{})}
	s, err := New(testConfig(Limited(0)), validator)
	require.NoError(t, err)

	firstDone := make(chan error)
	go func() {
		firstDone <- s.ValidateStore(context.Background(), "wallet")
	}()
	require.Eventually(t, func() bool { return len(validator.calls()) == 1 }, time.Second, time.Millisecond)

	err = s.ValidateStore(context.Background(), "wallet")
	assert.True(t, errors.Is(err, ErrValidationInProgress))

	// ValidateAll skips the busy store
	require.NoError(t, s.ValidateAll(context.Background()))

	close(validator.block)
	require.NoError(t, <-firstDone)
	assert.Len(t, validator.calls(), 1)
}

func TestValidateAllRunsStoresConcurrently(t *testing.T) {
	block := make(chan struct{})
	first := &fakeValidator{name: "first", block: block}
	second := &fakeValidator{name: "second", block: block}
	s, err := New(testConfig(Limited(0)), first, second)
	require.NoError(t, err)

	done := make(chan error)
	go func() {
		done <- s.ValidateAll(context.Background())
	}()
	// Both validations are in flight at the same time
	require.Eventually(t, func() bool {
		return len(first.calls()) == 1 && len(second.calls()) == 1
	}, time.Second, time.Millisecond)
	close(block)
	require.NoError(t, <-done)
	assert.NotEqual(t, first.calls()[0], second.calls()[0])
}

func TestRetryStopsOnCancel(t *testing.T) {
	validator := &fakeValidator{name: "wallet", failures: 1000, failureKind: reconciliation.ErrTransport}
	config := testConfig(UntilSuccess())
	config.MinBackoff = time.Hour
	config.MaxBackoff = time.Hour
	s, err := New(config, validator)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.ValidateStore(ctx, "wallet")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Len(t, validator.calls(), 1)
}

func TestRun(t *testing.T) {
	var rounds int32
	validator := &countingValidator{name: "wallet", rounds: &rounds}
	s, err := New(testConfig(Limited(0)), validator)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := s.Start(ctx, time.Millisecond)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&rounds) >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduler did not stop")
	}
}

type countingValidator struct {
	name   string
	rounds *int32
}

func (v *countingValidator) StoreName() string {
	return v.name
}

func (v *countingValidator) Validate(context.Context, uint64) error {
	atomic.AddInt32(v.rounds, 1)
	return nil
}

func TestSchedulerWithEngines(t *testing.T) {
	chain := simchain.New()
	connector := oracle.NewStaticConnector(chain)
	bus := events.NewEventBus()
	_, subscription := bus.Subscribe()

	var validators []Validator
	var ids []trackeditem.ItemID
	stores := make(map[string]trackeditem.Store)
	for _, name := range []string{"alice", "bob"} {
		store := trackeditem.NewMemoryStore()
		id := trackeditem.NewOutputItemID(testutils.RandomHash(t))
		require.NoError(t, store.Add(&trackeditem.TrackedItem{
			ID:     id,
			Kind:   trackeditem.KindOutput,
			Status: trackeditem.PendingUnmined(),
		}))
		ids = append(ids, id)
		stores[name] = store

		config := reconciliation.DefaultConfig()
		config.StoreName = name
		validators = append(validators, reconciliation.New(config, store, connector, bus))
	}
	_, err := chain.AddBlock(&simchain.BlockTemplate{Outputs: ids})
	require.NoError(t, err)

	s, err := New(testConfig(Limited(1)), validators...)
	require.NoError(t, err)
	require.NoError(t, s.ValidateAll(context.Background()))

	for name, store := range stores {
		items, err := store.FetchAll()
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, trackeditem.StateMinedUnconfirmed, items[0].Status.State, name)
	}

	changed := make(map[string]bool)
	for len(subscription) > 0 {
		event := <-subscription
		if event.Type == events.ValidationStateChanged {
			changed[event.Store] = true
		}
	}
	assert.Equal(t, map[string]bool{"alice": true, "bob": true}, changed)
}
