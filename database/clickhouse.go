package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
}

func NewClickHouseDB() (*ClickHouseClient, error) {
	host := os.Getenv("CLICKHOUSE_HOST")
	nativePortStr := os.Getenv("CLICKHOUSE_NATIVE_PORT")
	dbName := os.Getenv("CLICKHOUSE_DB_NAME")
	username := os.Getenv("CLICKHOUSE_USERNAME")
	password := os.Getenv("CLICKHOUSE_PASSWORD")

	if host == "" || nativePortStr == "" || dbName == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT, or CLICKHOUSE_DB_NAME environment variables are not set")
	}

	nativePort, err := strconv.Atoi(nativePortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, nativePort)},
		Auth: clickhouse.Auth{
			Database: dbName,
			Username: username,
			Password: password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "funneltrack-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Println("Successfully connected to ClickHouse database via Native TCP (direct options)!")
	return &ClickHouseClient{Conn: conn}, nil
}

// funnelEventsSchema is the append-only event log. The sorting key serves
// the (session_id, stage, occurred_at) progression scans directly; the
// bloom-filter skip index covers the (user_id, stage, time) path, and
// monthly partitions keep cohort-by-date scans bounded.
const funnelEventsSchema = `
	CREATE TABLE IF NOT EXISTS funnel_events (
		event_id String,
		session_id String,
		user_id String,
		stage LowCardinality(String),
		occurred_at DateTime64(3, 'UTC'),
		landing_page_id String,
		cta_id String,
		duration_ms Int64,
		scroll_depth_pct Float64,
		INDEX idx_user user_id TYPE bloom_filter GRANULARITY 4
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(occurred_at)
	ORDER BY (session_id, stage, occurred_at)
`

// InitSchema creates the funnel_events table if it does not exist yet.
func (c *ClickHouseClient) InitSchema(ctx context.Context) error {
	if err := c.Conn.Exec(ctx, funnelEventsSchema); err != nil {
		return fmt.Errorf("failed to apply clickhouse schema: %w", err)
	}
	log.Println("ClickHouse schema ready.")
	return nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		c.Conn.Close()
		log.Println("ClickHouse connection closed.")
	}
}
