package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store on a single Postgres table mirroring the
// DynamoDB layout: composite (pk, sk) primary key, two indexed secondary key
// pairs, and the remaining attributes in a jsonb column.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and ensures the schema exists.
func NewPostgresStore(url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing connection without migrating.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the single-table schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS directory_items (
			pk TEXT NOT NULL,
			sk TEXT NOT NULL,
			gsi1pk TEXT,
			gsi1sk TEXT,
			gsi2pk TEXT,
			gsi2sk TEXT,
			attributes JSONB NOT NULL DEFAULT '{}'::jsonb,
			PRIMARY KEY (pk, sk)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_directory_items_gsi1 ON directory_items (gsi1pk, gsi1sk)`,
		`CREATE INDEX IF NOT EXISTS idx_directory_items_gsi2 ON directory_items (gsi2pk, gsi2sk)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// DB exposes the underlying handle for health checks.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// Get returns the item under key, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, key Key) (Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, attributes
		FROM directory_items
		WHERE pk = $1 AND sk = $2
	`, key.PartitionKey, key.SortKey)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return item, nil
}

// Query returns all items in a partition whose sort key satisfies cond.
func (s *PostgresStore) Query(ctx context.Context, partition string, cond SortCondition) ([]Item, error) {
	return s.queryColumns(ctx, "pk", "sk", partition, cond)
}

// QueryByIndex is Query against a secondary index.
func (s *PostgresStore) QueryByIndex(ctx context.Context, index, partition string, cond SortCondition) ([]Item, error) {
	switch index {
	case IndexByType:
		return s.queryColumns(ctx, "gsi1pk", "gsi1sk", partition, cond)
	case IndexByTenant:
		return s.queryColumns(ctx, "gsi2pk", "gsi2sk", partition, cond)
	default:
		return nil, fmt.Errorf("kv: unknown index %q", index)
	}
}

func (s *PostgresStore) queryColumns(ctx context.Context, pkCol, skCol, partition string, cond SortCondition) ([]Item, error) {
	query := fmt.Sprintf(`
		SELECT pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, attributes
		FROM directory_items
		WHERE %s = $1`, pkCol)
	args := []any{partition}

	switch {
	case cond.Equals != "":
		query += fmt.Sprintf(" AND %s = $2", skCol)
		args = append(args, cond.Equals)
	case cond.BeginsWith != "":
		query += fmt.Sprintf(" AND %s LIKE $2", skCol)
		args = append(args, likePrefix(cond.BeginsWith))
	}
	query += fmt.Sprintf(" ORDER BY %s", skCol)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres query: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update merges a partial field set into an existing item's attributes.
func (s *PostgresStore) Update(ctx context.Context, key Key, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("postgres update: marshal fields: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE directory_items
		SET attributes = attributes || $1::jsonb
		WHERE pk = $2 AND sk = $3
	`, patch, key.PartitionKey, key.SortKey)
	if err != nil {
		return fmt.Errorf("postgres update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TransactWrite applies up to MaxTransactOps operations in a single database
// transaction. Any failure, including an IfNotExists precondition, rolls the
// whole transaction back.
func (s *PostgresStore) TransactWrite(ctx context.Context, ops []WriteOp) error {
	if err := validateTransactOps(ops); err != nil {
		return &TransactFailedError{Reason: err.Error(), Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &TransactFailedError{Reason: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	for _, op := range ops {
		if err := applyTx(ctx, tx, op); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return &TransactFailedError{Reason: "commit", Err: err}
	}
	return nil
}

// BatchWrite applies operations in sequential chunks of MaxBatchSize, each
// chunk in its own transaction. Applied chunks stay applied when a later
// chunk fails.
func (s *PostgresStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
	}

	applied := 0
	for applied < len(ops) {
		end := applied + MaxBatchSize
		if end > len(ops) {
			end = len(ops)
		}
		if err := s.writeChunk(ctx, ops[applied:end]); err != nil {
			return &PartialBatchError{Applied: applied, Remaining: len(ops) - applied, Err: err}
		}
		applied = end
	}
	return nil
}

func (s *PostgresStore) writeChunk(ctx context.Context, ops []WriteOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, op := range ops {
		if err := applyTx(ctx, tx, op); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyTx(ctx context.Context, tx *sql.Tx, op WriteOp) error {
	if op.Delete != nil {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM directory_items WHERE pk = $1 AND sk = $2
		`, op.Delete.PartitionKey, op.Delete.SortKey)
		if err != nil {
			return &TransactFailedError{Reason: "delete failed", Err: err}
		}
		return nil
	}

	key := op.Put.Key()
	attrs := make(map[string]any, len(op.Put))
	var gsi1pk, gsi1sk, gsi2pk, gsi2sk sql.NullString
	for name, value := range op.Put {
		switch name {
		case AttrPartitionKey, AttrSortKey:
		case AttrTypePK:
			gsi1pk = nullString(value)
		case AttrTypeSK:
			gsi1sk = nullString(value)
		case AttrTenantPK:
			gsi2pk = nullString(value)
		case AttrTenantSK:
			gsi2sk = nullString(value)
		default:
			attrs[name] = value
		}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return &TransactFailedError{Reason: "marshal attributes", Err: err}
	}

	if op.IfNotExists {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO directory_items (pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (pk, sk) DO NOTHING
		`, key.PartitionKey, key.SortKey, gsi1pk, gsi1sk, gsi2pk, gsi2sk, encoded)
		if err != nil {
			return &TransactFailedError{Reason: "conditional put failed", Err: err}
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return &TransactFailedError{Reason: "conditional put failed", Err: err}
		}
		if affected == 0 {
			return &TransactFailedError{Reason: "condition failed: item already exists"}
		}
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO directory_items (pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pk, sk) DO UPDATE SET
			gsi1pk = EXCLUDED.gsi1pk,
			gsi1sk = EXCLUDED.gsi1sk,
			gsi2pk = EXCLUDED.gsi2pk,
			gsi2sk = EXCLUDED.gsi2sk,
			attributes = EXCLUDED.attributes
	`, key.PartitionKey, key.SortKey, gsi1pk, gsi1sk, gsi2pk, gsi2sk, encoded)
	if err != nil {
		return &TransactFailedError{Reason: "put failed", Err: err}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var pk, sk string
	var gsi1pk, gsi1sk, gsi2pk, gsi2sk sql.NullString
	var encoded []byte

	if err := row.Scan(&pk, &sk, &gsi1pk, &gsi1sk, &gsi2pk, &gsi2sk, &encoded); err != nil {
		return nil, err
	}

	item := Item{}
	if len(encoded) > 0 {
		var attrs map[string]any
		if err := json.Unmarshal(encoded, &attrs); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		for name, value := range attrs {
			item[name] = value
		}
	}
	item[AttrPartitionKey] = pk
	item[AttrSortKey] = sk
	setIfValid(item, AttrTypePK, gsi1pk)
	setIfValid(item, AttrTypeSK, gsi1sk)
	setIfValid(item, AttrTenantPK, gsi2pk)
	setIfValid(item, AttrTenantSK, gsi2sk)
	return item, nil
}

func setIfValid(item Item, name string, v sql.NullString) {
	if v.Valid {
		item[name] = v.String
	}
}

func nullString(v any) sql.NullString {
	if s, ok := v.(string); ok && s != "" {
		return sql.NullString{String: s, Valid: true}
	}
	return sql.NullString{}
}

func likePrefix(prefix string) string {
	escaped := ""
	for _, r := range prefix {
		if r == '%' || r == '_' || r == '\\' {
			escaped += `\`
		}
		escaped += string(r)
	}
	return escaped + "%"
}
