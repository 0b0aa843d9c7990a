package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
)

// DefaultPageSize is the number of rows per batched upsert statement.
const DefaultPageSize = 100

// GatewayFunctions defines the interface for statement execution.
type GatewayFunctions interface {
	Execute(ctx context.Context, query string, args ...any) ([]model.Row, error)
	ExecuteBatch(ctx context.Context, build func(n int) (string, error), rows [][]any, pageSize int) ([]model.Row, error)
	ExecuteSession(ctx context.Context, setup []string, statements []string) ([]model.Row, error)
}

// Gateway runs every call in its own transaction on the store's pool.
type Gateway struct {
	db *helper.Database
}

// NewGateway creates a new gateway on the database connection.
func NewGateway(db *helper.Database) (*Gateway, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	db.Logger.Info("Initialized Gateway")

	return &Gateway{db: db}, nil
}

// Execute runs one statement. Rows are returned if the statement yields
// columns, otherwise nil.
func (g *Gateway) Execute(ctx context.Context, query string, args ...any) (result []model.Row, err error) {
	tx, err := g.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.NewError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	g.db.Logger.Debug("Executing statement", slog.String("query", query), slog.Int("args", len(args)))

	result, err = queryRows(ctx, tx, query, args...)
	if err != nil {
		return nil, helper.NewError("execute", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, helper.NewError("commit", err)
	}

	return result, nil
}

// ExecuteBatch splits rows into pages of pageSize and runs one statement per
// page, built for the page's row count, in one transaction.
func (g *Gateway) ExecuteBatch(ctx context.Context, build func(n int) (string, error), rows [][]any, pageSize int) (result []model.Row, err error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	tx, err := g.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.NewError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for start := 0; start < len(rows); start += pageSize {
		end := min(start+pageSize, len(rows))
		page := rows[start:end]

		query, buildErr := build(len(page))
		if buildErr != nil {
			err = buildErr
			return nil, helper.NewError("build statement", err)
		}

		var args []any
		for _, r := range page {
			args = append(args, r...)
		}

		g.db.Logger.Debug("Executing batch", slog.Int("rows", len(page)), slog.Int("offset", start))

		pageRows, queryErr := queryRows(ctx, tx, query, args...)
		if queryErr != nil {
			err = queryErr
			return nil, helper.NewError("execute batch", err)
		}
		result = append(result, pageRows...)
	}

	err = tx.Commit()
	if err != nil {
		return nil, helper.NewError("commit", err)
	}

	return result, nil
}

// ExecuteSession runs setup statements and then every statement in one
// transaction, returning the rows of all statements.
func (g *Gateway) ExecuteSession(ctx context.Context, setup []string, statements []string) (result []model.Row, err error) {
	tx, err := g.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.NewError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, s := range setup {
		_, err = tx.ExecContext(ctx, s)
		if err != nil {
			return nil, helper.NewError("session setup", err)
		}
	}

	for _, s := range statements {
		g.db.Logger.Debug("Executing session statement", slog.String("query", s))

		rows, queryErr := queryRows(ctx, tx, s)
		if queryErr != nil {
			err = queryErr
			return nil, helper.NewError("execute session", err)
		}
		result = append(result, rows...)
	}

	err = tx.Commit()
	if err != nil {
		return nil, helper.NewError("commit", err)
	}

	return result, nil
}

// IsDuplicateTable reports whether err is a duplicate table error (42P07).
func IsDuplicateTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P07"
	}
	return false
}

func queryRows(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]model.Row, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, rows.Err()
	}

	var result []model.Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		err = rows.Scan(pointers...)
		if err != nil {
			return nil, err
		}

		row := make(model.Row, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
