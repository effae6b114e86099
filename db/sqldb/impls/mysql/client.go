package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql" // side-effect
	"github.com/zeptools/gw-docprint/db/sqldb"
)

type Client struct {
	conf *sqldb.Conf

	db  *sql.DB
	dsn string
}

// Ensure mysql.Client implements sqldb.Client interface
var _ sqldb.Client = (*Client)(nil)

// Register makes "mysql" available to sqldb.New.
func Register() {
	sqldb.RegisterFactory("mysql", func(conf *sqldb.Conf) (sqldb.Client, error) {
		if conf == nil {
			return nil, errors.New("mysql: nil conf")
		}
		return &Client{conf: conf}, nil
	})
}

func (c *Client) Init() error {
	var err error
	if c.conf.DSN != "" {
		c.dsn = c.conf.DSN
	} else {
		c.dsn = fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=%s&sql_mode=ANSI_QUOTES",
			c.conf.User,
			c.conf.PW,
			c.conf.Host,
			c.conf.Port,
			c.conf.DB,
			c.conf.TZ,
		)
	}
	if c.db, err = sql.Open("mysql", c.dsn); err != nil {
		return err
	}
	c.db.SetConnMaxLifetime(time.Minute * 3)
	c.db.SetMaxOpenConns(c.conf.PoolSize())
	c.db.SetMaxIdleConns(c.conf.PoolSize())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = c.db.PingContext(ctx); err != nil {
		return err
	}
	log.Println("[INFO] mysql client initialized")
	return nil
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	log.Println("[INFO] closing mysql client")
	if err := c.db.Close(); err != nil {
		return err
	}
	log.Println("[INFO] mysql client closed")
	return nil
}

func (c *Client) Conf() *sqldb.Conf {
	return c.conf
}

func (c *Client) Exec(ctx context.Context, query string, args ...any) (sqldb.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Client) QueryRows(ctx context.Context, query string, args ...any) (sqldb.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Client) QueryRow(ctx context.Context, query string, args ...any) sqldb.Row {
	return row{row: c.db.QueryRowContext(ctx, query, args...)}
}

type row struct {
	row *sql.Row
}

func (r row) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return sqldb.ErrNoRows
	}
	return err
}
