package artifacts

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/zeptools/gw-docprint/capture"
	"github.com/zeptools/gw-docprint/compositor"
	"github.com/zeptools/gw-docprint/db/sqldb"
	"github.com/zeptools/gw-docprint/nullable"
)

//go:embed sql
var sqlFS embed.FS

const stmtGroup = "ledger"

// LedgerStmts is the statement group of the export ledger.
func LedgerStmts() sqldb.GroupFS {
	return sqldb.GroupFS{Group: stmtGroup, FS: sqlFS}
}

// LedgerRow is one stored ledger line.
type LedgerRow struct {
	ID        int64           `json:"id"`
	SourceID  string          `json:"sourceId"`
	Class     string          `json:"sourceClass"`
	Name      string          `json:"name"`
	State     string          `json:"state"`
	Pages     nullable.Int    `json:"pages"`
	Location  nullable.String `json:"location"`
	ErrorKind nullable.String `json:"errorKind"`
	Error     nullable.String `json:"error"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (r *LedgerRow) TargetFields() []any {
	return []any{&r.ID, &r.SourceID, &r.Class, &r.Name, &r.State, &r.Pages, &r.Location, &r.ErrorKind, &r.Error, &r.CreatedAt}
}

// Ledger is the SQL export ledger.
type Ledger struct {
	Client sqldb.Client
	Stmts  *sqldb.RawSQLStore
}

var _ compositor.Ledger = (*Ledger)(nil)

// NewLedger loads the ledger statements for the client's dialect.
func NewLedger(client sqldb.Client) (*Ledger, error) {
	dbtype := client.Conf().Type
	prefix, ok := sqldb.PlaceholderPrefixForDBType[dbtype]
	if !ok {
		return nil, fmt.Errorf("ledger: unsupported database type %q", dbtype)
	}
	store := sqldb.NewRawStore()
	if err := sqldb.LoadRawStmtsToStore(store, []sqldb.GroupFS{LedgerStmts()}, dbtype, prefix); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return &Ledger{Client: client, Stmts: store}, nil
}

func (l *Ledger) stmt(name string) (string, error) {
	key := sqldb.StoreGroupedStmtKey{Group: stmtGroup, StmtName: name}.String()
	s, ok := l.Stmts.Get(key)
	if !ok {
		return "", fmt.Errorf("ledger: statement %s not loaded", key)
	}
	return s, nil
}

// EnsureSchema creates the ledger table when missing.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	s, err := l.stmt("create")
	if err != nil {
		return err
	}
	_, err = l.Client.Exec(ctx, s)
	return err
}

func (l *Ledger) Record(ctx context.Context, e compositor.Entry) error {
	s, err := l.stmt("insert")
	if err != nil {
		return err
	}
	var pages nullable.Int
	if e.Pages > 0 {
		pages = nullable.IntFrom(int64(e.Pages))
	}
	var kind, msg nullable.String
	if e.Err != nil {
		kind = nullable.StringFrom(capture.KindOf(e.Err).String())
		msg = nullable.StringFrom(e.Err.Error())
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = l.Client.Exec(ctx, s,
		e.SourceID, e.Class.String(), e.Name, e.State.String(),
		pages, nullable.StringFrom(e.Location), kind, msg, at.UTC())
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", e.SourceID, err)
	}
	return nil
}

// Recent returns up to limit ledger rows, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*LedgerRow, error) {
	s, err := l.stmt("recent")
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return sqldb.QueryItems[LedgerRow, *LedgerRow](ctx, l.Client, s, limit)
}

// Purge deletes ledger rows older than olderThan.
func (l *Ledger) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	s, err := l.stmt("purge")
	if err != nil {
		return 0, err
	}
	res, err := l.Client.Exec(ctx, s, time.Now().Add(-olderThan).UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
