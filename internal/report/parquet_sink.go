package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-chain/internal/types"
)

const (
	TradesFileName = "trades.parquet"
	EquityFileName = "equity_curve.parquet"
)

// ParquetSink writes the fills and the equity curve as parquet files through an
// in-memory DuckDB database.
type ParquetSink struct {
	sq squirrel.StatementBuilderType
}

func NewParquetSink() *ParquetSink {
	return &ParquetSink{
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

func (s *ParquetSink) Write(folder string, report types.Report) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	if err := s.writeTrades(db, filepath.Join(folder, TradesFileName), report); err != nil {
		return err
	}

	return s.writeEquity(db, filepath.Join(folder, EquityFileName), report)
}

func (s *ParquetSink) writeTrades(db *sql.DB, path string, report types.Report) error {
	_, err := db.Exec(`
		CREATE TABLE trades (
			intent_id TEXT,
			handle TEXT,
			symbol TEXT,
			side TEXT,
			order_type TEXT,
			direction TEXT,
			reason TEXT,
			message TEXT,
			strategy_name TEXT,
			executed_at TIMESTAMP,
			executed_qty DOUBLE,
			executed_price DOUBLE,
			commission DOUBLE,
			closed_qty DOUBLE,
			entry_price DOUBLE,
			pnl DOUBLE,
			opened_at TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trades table: %w", err)
	}

	for _, trade := range report.Trades {
		_, err := s.sq.
			Insert("trades").
			Columns(
				"intent_id", "handle", "symbol", "side", "order_type", "direction", "reason", "message",
				"strategy_name", "executed_at", "executed_qty", "executed_price", "commission",
				"closed_qty", "entry_price", "pnl", "opened_at",
			).
			Values(
				trade.Intent.ID, string(trade.Handle), trade.Intent.Symbol, string(trade.Intent.Side),
				string(trade.Intent.OrderType), string(trade.Intent.Direction), trade.Intent.Reason.Reason,
				trade.Intent.Reason.Message, report.Name, nullTime(trade.ExecutedAt), trade.ExecutedQty,
				trade.ExecutedPrice, trade.Fee, trade.ClosedQty, trade.EntryPrice, trade.PnL,
				nullTime(trade.OpenedAt),
			).
			RunWith(db).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	return exportToParquet(db, "SELECT * FROM trades ORDER BY executed_at ASC", path)
}

func (s *ParquetSink) writeEquity(db *sql.DB, path string, report types.Report) error {
	if _, err := db.Exec(`CREATE TABLE equity_curve (time TIMESTAMP, equity DOUBLE)`); err != nil {
		return fmt.Errorf("failed to create equity table: %w", err)
	}

	for _, point := range report.Equity {
		_, err := s.sq.
			Insert("equity_curve").
			Columns("time", "equity").
			Values(nullTime(point.Time), point.Equity).
			RunWith(db).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert equity point: %w", err)
		}
	}

	return exportToParquet(db, "SELECT * FROM equity_curve ORDER BY time ASC", path)
}

func exportToParquet(db *sql.DB, query string, path string) error {
	_, err := db.Exec(fmt.Sprintf(`COPY (%s) TO '%s' (FORMAT PARQUET)`, query, path))
	if err != nil {
		return fmt.Errorf("failed to export to parquet: %w", err)
	}

	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
