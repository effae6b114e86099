package sqldb

import (
	"context"
	"fmt"
)

// Scannable is a pointer to a model that lists its scan targets.
type Scannable[T any] interface {
	~*T
	TargetFields() []any
}

// QueryItems runs rawStmt and scans every row into a new M.
func QueryItems[M any, MP Scannable[M]](ctx context.Context, h Handle, rawStmt string, args ...any) ([]*M, error) {
	rows, err := h.QueryRows(ctx, rawStmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return RowsToNewItems[M, MP](rows)
}

func RowsToNewItems[M any, MP Scannable[M]](rows Rows) ([]*M, error) {
	var itemPtrs []*M
	for rows.Next() {
		var item M
		p := MP(&item)
		if err := rows.Scan(p.TargetFields()...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		itemPtrs = append(itemPtrs, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during iterating rows: %w", err)
	}
	return itemPtrs, nil
}
