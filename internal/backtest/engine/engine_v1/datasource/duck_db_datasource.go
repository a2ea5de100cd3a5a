package datasource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/marelab/backsim/internal/logger"
	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
)

// DuckDBDataSource serves bars through a DuckDB view over the data file, so
// CSV and Parquet inputs share one query path.
type DuckDBDataSource struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewDataSource opens an in-memory DuckDB instance for bar queries.
func NewDataSource(log *logger.Logger) (DataSource, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInitFailed, "failed to open data source database", err)
	}

	return &DuckDBDataSource{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.log.Debug("initializing bar data source", zap.String("path", path))

	var reader string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		reader = "read_csv_auto"
	case ".parquet":
		reader = "read_parquet"
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported bar data format: %s", filepath.Ext(path))
	}

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS bars;`); err != nil {
		return errors.Wrap(errors.ErrCodeInitFailed, "failed to drop existing view", err)
	}

	// CREATE VIEW has no placeholder support.
	query := fmt.Sprintf(`
		CREATE VIEW bars AS
		SELECT time, symbol, open, high, low, close, volume
		FROM %s('%s');
	`, reader, path)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeDataNotFound, "failed to load bar data", err)
	}

	return nil
}

func timeBounds(start, end optional.Option[time.Time]) (conditions []string, params []interface{}) {
	if start.IsSome() {
		conditions = append(conditions, fmt.Sprintf("time >= $%d", len(params)+1))
		params = append(params, start.Unwrap())
	}

	if end.IsSome() {
		conditions = append(conditions, fmt.Sprintf("time <= $%d", len(params)+1))
		params = append(params, end.Unwrap())
	}

	return conditions, params
}

// ReadAll implements DataSource.
func (d *DuckDBDataSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		query := `
			SELECT time, symbol, open, high, low, close, volume
			FROM bars
		`

		conditions, params := timeBounds(start, end)
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}

		query += " ORDER BY time ASC, symbol ASC"

		rows, err := d.db.Query(query, params...)
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			var bar types.Bar

			err := rows.Scan(&bar.Time, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
			if err != nil {
				yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err))

				return
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err))
		}
	}
}

// ReadLastBar implements DataSource.
func (d *DuckDBDataSource) ReadLastBar(symbol string) (types.Bar, error) {
	query := d.sq.
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("time DESC").
		Limit(1).
		RunWith(d.db)

	var bar types.Bar

	err := query.QueryRow().Scan(&bar.Time, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if err == sql.ErrNoRows {
		return types.Bar{}, errors.Newf(errors.ErrCodeDataNotFound, "no bars for symbol %s", symbol)
	}

	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read last bar", err)
	}

	return bar, nil
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	query := "SELECT COUNT(*) FROM bars"

	conditions, params := timeBounds(start, end)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := d.db.QueryRow(query, params...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}
