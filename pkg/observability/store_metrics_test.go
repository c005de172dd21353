package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon-ops/tenantd/pkg/kv"
)

func TestInstrumentedStoreCountsOperations(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	store := NewInstrumentedStore(kv.NewMemoryStore(), metrics)
	ctx := context.Background()

	err := store.TransactWrite(ctx, []kv.WriteOp{{Put: kv.Item{
		kv.AttrPartitionKey: "USER#u1",
		kv.AttrSortKey:      kv.MetadataSK,
		"id":                "u1",
	}}})
	require.NoError(t, err)

	_, err = store.Get(ctx, kv.Key{PartitionKey: "USER#u1", SortKey: kv.MetadataSK})
	require.NoError(t, err)

	// A miss is an answer, not a failure.
	_, err = store.Get(ctx, kv.Key{PartitionKey: "USER#ghost", SortKey: kv.MetadataSK})
	assert.ErrorIs(t, err, kv.ErrNotFound)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues("get", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues("transact_write", "ok")))
}

func TestInstrumentedStoreCountsFailures(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	store := NewInstrumentedStore(brokenStore{}, metrics)

	_, err := store.Get(context.Background(), kv.Key{PartitionKey: "USER#u1", SortKey: kv.MetadataSK})
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues("get", "error")))
}

func TestInstrumentedStorePassthroughWithoutMetrics(t *testing.T) {
	base := kv.NewMemoryStore()
	assert.Same(t, kv.Store(base), NewInstrumentedStore(base, nil))
}
