package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeptools/gw-docprint/db/sqldb"
)

type Client struct {
	conf *sqldb.Conf
	pool *pgxpool.Pool
	dsn  string
}

// Ensure pgsql.Client implements sqldb.Client interface
var _ sqldb.Client = (*Client)(nil)

// Register makes "pgsql" available to sqldb.New.
func Register() {
	sqldb.RegisterFactory("pgsql", func(conf *sqldb.Conf) (sqldb.Client, error) {
		if conf == nil {
			return nil, errors.New("pgsql: nil conf")
		}
		return &Client{conf: conf}, nil
	})
}

func (c *Client) Init() error {
	if c.conf.DSN != "" {
		c.dsn = c.conf.DSN
	} else {
		sslMode := c.conf.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		c.dsn = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			c.conf.Host,
			c.conf.Port,
			c.conf.User,
			c.conf.PW,
			c.conf.DB,
			sslMode,
			c.conf.TZ,
		)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	config, err := pgxpool.ParseConfig(c.dsn)
	if err != nil {
		return fmt.Errorf("failed to parse pgx config: %w", err)
	}
	config.MaxConns = int32(c.conf.PoolSize())
	config.MinConns = 1
	config.MaxConnLifetime = 3 * time.Minute
	c.pool, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect pgx Pool: %w", err)
	}
	if err = c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	log.Print("[INFO] pgsql client initialized")
	return nil
}

func (c *Client) Close() error {
	if c.pool == nil {
		return nil
	}
	log.Println("[INFO] closing pgsql client")
	c.pool.Close()
	log.Println("[INFO] pgsql client closed")
	return nil
}

func (c *Client) Conf() *sqldb.Conf {
	return c.conf
}

func (c *Client) Exec(ctx context.Context, query string, args ...any) (sqldb.Result, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return result{tag: tag}, nil
}

func (c *Client) QueryRows(ctx context.Context, query string, args ...any) (sqldb.Rows, error) {
	rs, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &rows{rows: rs}, nil
}

func (c *Client) QueryRow(ctx context.Context, query string, args ...any) sqldb.Row {
	return row{row: c.pool.QueryRow(ctx, query, args...)}
}

type result struct {
	tag pgconn.CommandTag
}

func (r result) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}

type rows struct {
	rows pgx.Rows
}

func (r *rows) Next() bool             { return r.rows.Next() }
func (r *rows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *rows) Err() error             { return r.rows.Err() }

func (r *rows) Close() error {
	r.rows.Close()
	return nil
}

type row struct {
	row pgx.Row
}

func (r row) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return sqldb.ErrNoRows
	}
	return err
}
