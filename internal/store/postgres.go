package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresSource reads the seven extracts from same-named tables. It only
// ever issues SELECTs.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(dsn string) (*PostgresSource, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresSource{db: db}, nil
}

func (p *PostgresSource) Name() string { return "postgres" }

func (p *PostgresSource) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresSource) Close() error { return p.db.Close() }

func (p *PostgresSource) Fetch(ctx context.Context, table string) ([]string, [][]string, error) {
	if !isKnownTable(table) {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableMissing, table)
	}
	var reg sql.NullString
	if err := p.db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, table).Scan(&reg); err != nil {
		return nil, nil, err
	}
	if !reg.Valid {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableMissing, table)
	}
	// table is one of the fixed names above, never caller input
	rows, err := p.db.QueryContext(ctx, `SELECT * FROM `+table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	header, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		cells := make([]sql.NullString, len(header))
		dest := make([]any, len(header))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		rec := make([]string, len(header))
		for i, c := range cells {
			if c.Valid {
				rec[i] = c.String
			}
		}
		out = append(out, rec)
	}
	return header, out, rows.Err()
}

func isKnownTable(name string) bool {
	for _, t := range AllTables {
		if t == name {
			return true
		}
	}
	return false
}
