package db

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

type PostgresDB struct {
	Conn *sql.DB
}

func NewPostgresDB(host string, port int, user, password, dbname string) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Connected to PostgreSQL")
	return &PostgresDB{Conn: conn}, nil
}

// InitSchema creates the order tables if they don't exist. The partial
// unique index on status_history guarantees at most one synthetic
// initial entry per order, even under concurrent event delivery.
func (db *PostgresDB) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		order_id     TEXT PRIMARY KEY,
		customer_id  TEXT NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		status       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id           SERIAL PRIMARY KEY,
		order_id     TEXT NOT NULL REFERENCES orders(order_id),
		product_id   TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity     INT NOT NULL,
		price        NUMERIC(12,2) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS status_history (
		id          SERIAL PRIMARY KEY,
		order_id    TEXT NOT NULL REFERENCES orders(order_id),
		from_status TEXT,
		to_status   TEXT NOT NULL,
		notes       TEXT NOT NULL DEFAULT '',
		changed_by  TEXT NOT NULL DEFAULT 'system',
		changed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_status_history_order ON status_history (order_id, changed_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_status_history_initial
		ON status_history (order_id) WHERE from_status IS NULL;
	`

	if _, err := db.Conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}

	log.Println("✅ Database schema ready")
	return nil
}

func (db *PostgresDB) Close() error {
	return db.Conn.Close()
}
