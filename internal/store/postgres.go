package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pocketledger/expense-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"insert_record": `INSERT INTO transactions
		(id, amount, category, merchant, description, timestamp, confidence,
		 input_method, tags, raw_data, currency, verified, sync_status, anomaly, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
	"get_record": `SELECT id, amount, category, merchant, description, timestamp, confidence,
		input_method, tags, raw_data, currency, verified, sync_status, anomaly, created_at
		FROM transactions WHERE id = $1`,
	"update_sync_status": `UPDATE transactions SET sync_status = $1 WHERE id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	amount       NUMERIC(12,2) NOT NULL,
	category     TEXT NOT NULL,
	merchant     TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	timestamp    TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	input_method TEXT NOT NULL,
	tags         JSONB NOT NULL DEFAULT '[]',
	raw_data     JSONB,
	currency     TEXT NOT NULL DEFAULT 'CNY',
	verified     BOOLEAN NOT NULL DEFAULT FALSE,
	sync_status  TEXT NOT NULL DEFAULT 'pending',
	anomaly      TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category);
CREATE INDEX IF NOT EXISTS idx_transactions_sync_status ON transactions(sync_status);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, record *model.TransactionRecord) error {
	tagsJSON, err := json.Marshal(record.Tags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tags")
	}

	var rawData any
	if len(record.RawData) > 0 {
		rawData = string(record.RawData)
	}
	var anomaly any
	if record.Anomaly != "" {
		anomaly = record.Anomaly
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO transactions
		 (id, amount, category, merchant, description, timestamp, confidence,
		  input_method, tags, raw_data, currency, verified, sync_status, anomaly, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		record.ID, record.Amount, record.Category, record.Merchant, record.Description,
		record.Timestamp, record.Confidence, string(record.InputMethod), string(tagsJSON),
		rawData, record.Currency, record.Verified, string(record.SyncStatus), anomaly, createdAt,
	)
	return eris.Wrapf(err, "postgres: insert record %s", record.ID)
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.TransactionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, amount, category, merchant, description, timestamp, confidence,
		        input_method, tags, raw_data, currency, verified, sync_status, anomaly, created_at
		 FROM transactions WHERE id = $1`,
		id,
	)
	record, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("record not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	return record, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter ListFilter) ([]model.TransactionRecord, error) {
	query := `SELECT id, amount, category, merchant, description, timestamp, confidence,
	                 input_method, tags, raw_data, currency, verified, sync_status, anomaly, created_at
	          FROM transactions WHERE 1=1`
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Category != "" {
		query += ` AND category = ` + arg(filter.Category)
	}
	if filter.InputMethod != "" {
		query += ` AND input_method = ` + arg(string(filter.InputMethod))
	}
	if filter.SyncStatus != "" {
		query += ` AND sync_status = ` + arg(string(filter.SyncStatus))
	}
	if filter.OnlyAnomalies {
		query += ` AND anomaly IS NOT NULL`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.TransactionRecord
	for rows.Next() {
		r, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions SET sync_status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update sync status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanPgRecord(row pgx.Row) (*model.TransactionRecord, error) {
	var r model.TransactionRecord
	var method, syncStatus string
	var tagsJSON []byte
	var rawData []byte
	var anomaly *string

	err := row.Scan(&r.ID, &r.Amount, &r.Category, &r.Merchant, &r.Description,
		&r.Timestamp, &r.Confidence, &method, &tagsJSON, &rawData,
		&r.Currency, &r.Verified, &syncStatus, &anomaly, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.InputMethod = model.InputMethod(method)
	r.SyncStatus = model.SyncStatus(syncStatus)
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &r.Tags); err != nil {
			return nil, eris.Wrap(err, "unmarshal tags")
		}
	}
	if len(rawData) > 0 {
		r.RawData = json.RawMessage(rawData)
	}
	if anomaly != nil {
		r.Anomaly = *anomaly
	}
	return &r, nil
}
