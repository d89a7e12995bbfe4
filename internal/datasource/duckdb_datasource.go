package datasource

import (
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"go.uber.org/zap"
)

type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDataSource opens an in-memory DuckDB database. Bars are loaded with Initialize.
func NewDataSource(log *logger.Logger) (*DuckDBDataSource, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open DuckDB", err)
	}

	if _, err := db.Exec(`SET threads=4;`); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to set DuckDB options", err)
	}

	return &DuckDBDataSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource. The file format follows the extension.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", path))

	var reader string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		reader = "read_parquet"
	case ".csv":
		reader = "read_csv_auto"
	default:
		return errors.Newf(errors.ErrCodeDataSourceUnavailable, "unsupported data file %s", path)
	}

	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "data file %s is not readable", path)
	}

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS market_data;`); err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to drop existing view", err)
	}

	// Squirrel doesn't support CREATE VIEW
	query := fmt.Sprintf(`
		CREATE VIEW market_data AS
		SELECT * FROM %s('%s');
	`, reader, strings.ReplaceAll(path, "'", "''"))

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to load %s", path)
	}

	return nil
}

func withTimeRange(query squirrel.SelectBuilder, start optional.Option[time.Time], end optional.Option[time.Time]) squirrel.SelectBuilder {
	if start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		query = query.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	return query
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	query, args, err := withTimeRange(d.sq.Select("COUNT(*)").From("market_data"), start, end).ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count market data", err)
	}

	return count, nil
}

// ReadAll implements DataSource.
func (d *DuckDBDataSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) iter.Seq2[types.MarketData, error] {
	return func(yield func(types.MarketData, error) bool) {
		d.logger.Debug("Reading all data from DuckDB")

		query, args, err := withTimeRange(
			d.sq.Select("time", "symbol", "open", "high", "low", "close", "volume").From("market_data"),
			start, end,
		).OrderBy("time ASC", "symbol ASC").ToSql()
		if err != nil {
			yield(types.MarketData{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err))
			return
		}

		rows, err := d.db.Query(query, args...)
		if err != nil {
			yield(types.MarketData{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			bar, err := scanBar(rows)
			if err != nil {
				yield(types.MarketData{}, err)
				return
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.MarketData{}, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating rows", err))
		}
	}
}

// ReadLastData implements DataSource.
func (d *DuckDBDataSource) ReadLastData(symbol string) (types.MarketData, error) {
	query, args, err := d.sq.
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("time DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return types.MarketData{}, errors.Newf(errors.ErrCodeNoDataFound, "no data found for symbol %s", symbol)
	}

	return scanBar(rows)
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}

func scanBar(rows *sql.Rows) (types.MarketData, error) {
	var (
		timestamp                      time.Time
		open, high, low, close, volume float64
		symbol                         string
	)

	if err := rows.Scan(&timestamp, &symbol, &open, &high, &low, &close, &volume); err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan row", err)
	}

	return types.MarketData{
		Symbol: symbol,
		Time:   timestamp,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}, nil
}
