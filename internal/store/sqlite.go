package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pocketledger/expense-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	amount       REAL NOT NULL,
	category     TEXT NOT NULL,
	merchant     TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	timestamp    TEXT NOT NULL,
	confidence   REAL NOT NULL,
	input_method TEXT NOT NULL,
	tags         TEXT NOT NULL DEFAULT '[]',
	raw_data     TEXT,
	currency     TEXT NOT NULL DEFAULT 'CNY',
	verified     INTEGER NOT NULL DEFAULT 0,
	sync_status  TEXT NOT NULL DEFAULT 'pending',
	anomaly      TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category);
CREATE INDEX IF NOT EXISTS idx_transactions_sync_status ON transactions(sync_status);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, record *model.TransactionRecord) error {
	tagsJSON, err := json.Marshal(record.Tags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tags")
	}

	var rawData sql.NullString
	if len(record.RawData) > 0 {
		rawData = sql.NullString{String: string(record.RawData), Valid: true}
	}
	var anomaly sql.NullString
	if record.Anomaly != "" {
		anomaly = sql.NullString{String: record.Anomaly, Valid: true}
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, amount, category, merchant, description, timestamp, confidence,
		  input_method, tags, raw_data, currency, verified, sync_status, anomaly, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Amount, record.Category, record.Merchant, record.Description,
		record.Timestamp, record.Confidence, string(record.InputMethod), string(tagsJSON),
		rawData, record.Currency, record.Verified, string(record.SyncStatus), anomaly, createdAt,
	)
	return eris.Wrapf(err, "sqlite: insert record %s", record.ID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.TransactionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount, category, merchant, description, timestamp, confidence,
		        input_method, tags, raw_data, currency, verified, sync_status, anomaly, created_at
		 FROM transactions WHERE id = ?`,
		id,
	)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("record not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return record, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter ListFilter) ([]model.TransactionRecord, error) {
	query := `SELECT id, amount, category, merchant, description, timestamp, confidence,
	                 input_method, tags, raw_data, currency, verified, sync_status, anomaly, created_at
	          FROM transactions WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.InputMethod != "" {
		query += ` AND input_method = ?`
		args = append(args, string(filter.InputMethod))
	}
	if filter.SyncStatus != "" {
		query += ` AND sync_status = ?`
		args = append(args, string(filter.SyncStatus))
	}
	if filter.OnlyAnomalies {
		query += ` AND anomaly IS NOT NULL`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.TransactionRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update sync status %s", id)
	}
	return checkRowsAffected(res, "record", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.TransactionRecord, error) {
	var r model.TransactionRecord
	var method, syncStatus, tagsJSON string
	var rawData, anomaly sql.NullString

	err := row.Scan(&r.ID, &r.Amount, &r.Category, &r.Merchant, &r.Description,
		&r.Timestamp, &r.Confidence, &method, &tagsJSON, &rawData,
		&r.Currency, &r.Verified, &syncStatus, &anomaly, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.InputMethod = model.InputMethod(method)
	r.SyncStatus = model.SyncStatus(syncStatus)
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		return nil, eris.Wrap(err, "unmarshal tags")
	}
	if rawData.Valid {
		r.RawData = json.RawMessage(rawData.String)
	}
	if anomaly.Valid {
		r.Anomaly = anomaly.String
	}
	return &r, nil
}
