package kv

import (
	"context"
	"errors"
	"fmt"
)

// Attribute names shared by every backend. The two secondary indexes project
// all attributes.
const (
	AttrPartitionKey = "PK"
	AttrSortKey      = "SK"
	AttrTypePK       = "GSI1PK"
	AttrTypeSK       = "GSI1SK"
	AttrTenantPK     = "GSI2PK"
	AttrTenantSK     = "GSI2SK"
)

// Secondary index names.
const (
	IndexByType   = "GSI1"
	IndexByTenant = "GSI2"
)

const (
	// MaxTransactOps is the upper bound on operations in a single
	// TransactWrite call.
	MaxTransactOps = 25

	// MaxBatchSize is the chunk size used by BatchWrite.
	MaxBatchSize = 25
)

// ErrNotFound is returned by Get when no item exists under the given key.
var ErrNotFound = errors.New("kv: item not found")

// Key is the composite primary key of an item.
type Key struct {
	PartitionKey string
	SortKey      string
}

// Item is a flat attribute map. Values are strings, bools, numbers,
// []string, or []any/map[string]any for nested collections.
type Item map[string]any

// Key returns the item's primary key.
func (i Item) Key() Key {
	pk, _ := i[AttrPartitionKey].(string)
	sk, _ := i[AttrSortKey].(string)
	return Key{PartitionKey: pk, SortKey: sk}
}

// String returns the named attribute as a string, or "" when absent.
func (i Item) String(name string) string {
	v, _ := i[name].(string)
	return v
}

// Bool returns the named attribute as a bool, or false when absent.
func (i Item) Bool(name string) bool {
	v, _ := i[name].(bool)
	return v
}

// Int returns the named attribute as an int, or 0 when absent.
func (i Item) Int(name string) int {
	switch v := i[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// SortCondition restricts the sort-key component of a query. The zero value
// matches every item in the partition.
type SortCondition struct {
	Equals     string
	BeginsWith string
}

// Matches reports whether the given sort key satisfies the condition.
func (c SortCondition) Matches(sortKey string) bool {
	if c.Equals != "" {
		return sortKey == c.Equals
	}
	if c.BeginsWith != "" {
		return len(sortKey) >= len(c.BeginsWith) && sortKey[:len(c.BeginsWith)] == c.BeginsWith
	}
	return true
}

// SortEquals matches items whose sort key equals v.
func SortEquals(v string) SortCondition { return SortCondition{Equals: v} }

// SortBeginsWith matches items whose sort key starts with prefix.
func SortBeginsWith(prefix string) SortCondition { return SortCondition{BeginsWith: prefix} }

// WriteOp is a single put or delete in a TransactWrite or BatchWrite call.
// Exactly one of Put and Delete must be set.
type WriteOp struct {
	Put    Item
	Delete *Key

	// IfNotExists makes a put conditional on no item existing under the
	// same key. A condition failure aborts the enclosing transaction.
	IfNotExists bool
}

// Validate checks that the operation is well formed.
func (op WriteOp) Validate() error {
	if (op.Put == nil) == (op.Delete == nil) {
		return errors.New("kv: write op must set exactly one of Put or Delete")
	}
	if op.Put != nil {
		k := op.Put.Key()
		if k.PartitionKey == "" || k.SortKey == "" {
			return errors.New("kv: put item missing primary key attributes")
		}
	}
	return nil
}

func (op WriteOp) key() Key {
	if op.Delete != nil {
		return *op.Delete
	}
	return op.Put.Key()
}

// TransactFailedError reports an aborted TransactWrite. No operation in the
// transaction was applied.
type TransactFailedError struct {
	Reason string
	Err    error
}

func (e *TransactFailedError) Error() string {
	return fmt.Sprintf("kv: transaction aborted: %s", e.Reason)
}

func (e *TransactFailedError) Unwrap() error { return e.Err }

// IsTransactFailed checks if an error is a TransactFailedError.
func IsTransactFailed(err error) bool {
	var tf *TransactFailedError
	return errors.As(err, &tf)
}

// PartialBatchError reports a BatchWrite that failed after some chunks were
// already applied. Applied chunks are not rolled back; callers recover by
// re-issuing the remaining operations.
type PartialBatchError struct {
	Applied   int // operations applied before the failure
	Remaining int // operations not attempted or failed
	Err       error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("kv: batch write failed after %d of %d operations: %v",
		e.Applied, e.Applied+e.Remaining, e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

// IsPartialBatch checks if an error is a PartialBatchError.
func IsPartialBatch(err error) bool {
	var pb *PartialBatchError
	return errors.As(err, &pb)
}

// Store is the single-table key-value contract consumed by the directory
// components. Implementations must treat secondary-index reads as
// query-time-only projections; no cross-index joins.
type Store interface {
	// Get returns the item under key, or ErrNotFound.
	Get(ctx context.Context, key Key) (Item, error)

	// Query returns all items in a partition whose sort key satisfies cond.
	Query(ctx context.Context, partition string, cond SortCondition) ([]Item, error)

	// QueryByIndex is Query against a secondary index.
	QueryByIndex(ctx context.Context, index, partition string, cond SortCondition) ([]Item, error)

	// Update applies a partial field set to an existing item. Fields not
	// present in fields are left untouched.
	Update(ctx context.Context, key Key, fields map[string]any) error

	// TransactWrite applies up to MaxTransactOps operations atomically.
	TransactWrite(ctx context.Context, ops []WriteOp) error

	// BatchWrite applies operations in sequential chunks of MaxBatchSize
	// without cross-chunk atomicity.
	BatchWrite(ctx context.Context, ops []WriteOp) error
}

func validateTransactOps(ops []WriteOp) error {
	if len(ops) == 0 {
		return errors.New("kv: empty transaction")
	}
	if len(ops) > MaxTransactOps {
		return fmt.Errorf("kv: transaction exceeds %d operations", MaxTransactOps)
	}
	// DynamoDB rejects transactions that touch the same item twice, so the
	// contract forbids it for every backend.
	seen := make(map[Key]struct{}, len(ops))
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
		key := op.key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("kv: transaction contains more than one operation on %s/%s",
				key.PartitionKey, key.SortKey)
		}
		seen[key] = struct{}{}
	}
	return nil
}
