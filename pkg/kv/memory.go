package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a map-backed Store used in tests and local development. It
// honours the same transactional and chunking semantics as the real
// backends, including the absence of cross-chunk rollback in BatchWrite.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Key]Item

	// FailAfterBatchChunks makes BatchWrite fail before applying the
	// chunk with this zero-based index. Negative disables. Test hook for
	// the partial-batch gap.
	FailAfterBatchChunks int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:                make(map[Key]Item),
		FailAfterBatchChunks: -1,
	}
}

// Get returns the item under key, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, key Key) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

// Query returns all items in a partition whose sort key satisfies cond,
// ordered by sort key.
func (s *MemoryStore) Query(ctx context.Context, partition string, cond SortCondition) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for key, item := range s.items {
		if key.PartitionKey == partition && cond.Matches(key.SortKey) {
			out = append(out, copyItem(item))
		}
	}
	sortItems(out, AttrSortKey)
	return out, nil
}

// QueryByIndex is Query against one of the secondary indexes.
func (s *MemoryStore) QueryByIndex(ctx context.Context, index, partition string, cond SortCondition) ([]Item, error) {
	pkAttr, skAttr, err := indexAttrs(index)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for _, item := range s.items {
		if item.String(pkAttr) == partition && cond.Matches(item.String(skAttr)) {
			out = append(out, copyItem(item))
		}
	}
	sortItems(out, skAttr)
	return out, nil
}

// Update applies a partial field set to an existing item.
func (s *MemoryStore) Update(ctx context.Context, key Key, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return ErrNotFound
	}
	for name, value := range fields {
		item[name] = value
	}
	return nil
}

// TransactWrite applies all operations or none. Precondition failures abort
// the whole transaction.
func (s *MemoryStore) TransactWrite(ctx context.Context, ops []WriteOp) error {
	if err := validateTransactOps(ops); err != nil {
		return &TransactFailedError{Reason: err.Error(), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every precondition before mutating anything.
	for _, op := range ops {
		if op.Put != nil && op.IfNotExists {
			if _, exists := s.items[op.Put.Key()]; exists {
				return &TransactFailedError{Reason: "condition failed: item already exists"}
			}
		}
	}

	for _, op := range ops {
		s.apply(op)
	}
	return nil
}

// BatchWrite applies operations in sequential chunks of MaxBatchSize with no
// rollback of earlier chunks on failure.
func (s *MemoryStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for chunk := 0; applied < len(ops); chunk++ {
		if s.FailAfterBatchChunks >= 0 && chunk >= s.FailAfterBatchChunks {
			return &PartialBatchError{
				Applied:   applied,
				Remaining: len(ops) - applied,
				Err:       fmt.Errorf("injected failure at chunk %d", chunk),
			}
		}

		end := applied + MaxBatchSize
		if end > len(ops) {
			end = len(ops)
		}
		for _, op := range ops[applied:end] {
			s.apply(op)
		}
		applied = end
	}
	return nil
}

// Len returns the number of stored items.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) apply(op WriteOp) {
	if op.Put != nil {
		s.items[op.Put.Key()] = copyItem(op.Put)
		return
	}
	delete(s.items, *op.Delete)
}

func indexAttrs(index string) (pkAttr, skAttr string, err error) {
	switch index {
	case IndexByType:
		return AttrTypePK, AttrTypeSK, nil
	case IndexByTenant:
		return AttrTenantPK, AttrTenantSK, nil
	default:
		return "", "", fmt.Errorf("kv: unknown index %q", index)
	}
}

func copyItem(item Item) Item {
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func sortItems(items []Item, skAttr string) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].String(skAttr) < items[j].String(skAttr)
	})
}
