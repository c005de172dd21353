package observability

import (
	"context"
	"errors"
	"time"

	"github.com/pantheon-ops/tenantd/pkg/kv"
)

// InstrumentedStore decorates a kv.Store with operation counters and
// latency histograms.
type InstrumentedStore struct {
	store   kv.Store
	metrics *Metrics
}

// NewInstrumentedStore wraps store with metrics. A nil metrics returns the
// store unwrapped.
func NewInstrumentedStore(store kv.Store, metrics *Metrics) kv.Store {
	if metrics == nil {
		return store
	}
	return &InstrumentedStore{store: store, metrics: metrics}
}

// observe records one operation. ErrNotFound counts as ok: it is an answer,
// not a failure.
func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		status = "error"
	}
	s.metrics.StoreOperationsTotal.WithLabelValues(op, status).Inc()
	s.metrics.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) Get(ctx context.Context, key kv.Key) (kv.Item, error) {
	start := time.Now()
	item, err := s.store.Get(ctx, key)
	s.observe("get", start, err)
	return item, err
}

func (s *InstrumentedStore) Query(ctx context.Context, partition string, cond kv.SortCondition) ([]kv.Item, error) {
	start := time.Now()
	items, err := s.store.Query(ctx, partition, cond)
	s.observe("query", start, err)
	return items, err
}

func (s *InstrumentedStore) QueryByIndex(ctx context.Context, index, partition string, cond kv.SortCondition) ([]kv.Item, error) {
	start := time.Now()
	items, err := s.store.QueryByIndex(ctx, index, partition, cond)
	s.observe("query_index", start, err)
	return items, err
}

func (s *InstrumentedStore) Update(ctx context.Context, key kv.Key, fields map[string]any) error {
	start := time.Now()
	err := s.store.Update(ctx, key, fields)
	s.observe("update", start, err)
	return err
}

func (s *InstrumentedStore) TransactWrite(ctx context.Context, ops []kv.WriteOp) error {
	start := time.Now()
	err := s.store.TransactWrite(ctx, ops)
	s.observe("transact_write", start, err)
	return err
}

func (s *InstrumentedStore) BatchWrite(ctx context.Context, ops []kv.WriteOp) error {
	start := time.Now()
	err := s.store.BatchWrite(ctx, ops)
	s.observe("batch_write", start, err)
	return err
}
