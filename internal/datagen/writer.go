package datagen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
)

const insertBatchSize = 500

// Write stores bars in a file the data source can read. The format follows the
// extension: .parquet or .csv.
func Write(path string, bars []types.MarketData) error {
	var format string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		format = "(FORMAT PARQUET)"
	case ".csv":
		format = "(FORMAT CSV, HEADER)"
	default:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported output file %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE market_data (
			time TIMESTAMP,
			symbol TEXT,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create market data table: %w", err)
	}

	sq := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

	for start := 0; start < len(bars); start += insertBatchSize {
		end := min(start+insertBatchSize, len(bars))

		insert := sq.Insert("market_data").Columns("time", "symbol", "open", "high", "low", "close", "volume")
		for _, bar := range bars[start:end] {
			insert = insert.Values(bar.Time, bar.Symbol, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		}

		if _, err := insert.RunWith(db).Exec(); err != nil {
			return fmt.Errorf("failed to insert market data: %w", err)
		}
	}

	query := fmt.Sprintf(`COPY (SELECT * FROM market_data ORDER BY time ASC, symbol ASC) TO '%s' %s`,
		strings.ReplaceAll(path, "'", "''"), format)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to export market data: %w", err)
	}

	return nil
}
