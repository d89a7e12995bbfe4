package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/mocks"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"gopkg.in/yaml.v3"
)

type ReportTestSuite struct {
	suite.Suite
	tempDir string
	report  types.Report
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportTestSuite))
}

func (s *ReportTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()

	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	s.report = types.Report{
		ID:        "run-1",
		Name:      "Alpha",
		Timestamp: start,
		Stats: types.TradeStats{
			TradeResult: types.TradeResult{NumberOfTrades: 2, NumberOfWinningTrades: 1, WinRate: 1},
			TotalFees:   2,
			TradePnl:    types.TradePnl{RealizedPnL: 48, TotalPnL: 48},
		},
		Fitness: 48,
		Trades: []types.Trade{
			{
				Intent:        types.OrderIntent{ID: "i-1", Symbol: "AAPL", Side: types.PurchaseTypeBuy, OrderType: types.OrderTypeMarket, Direction: types.DirectionEnter},
				Handle:        "h-1",
				ExecutedAt:    start,
				ExecutedQty:   10,
				ExecutedPrice: 100,
				Fee:           1,
				PnL:           -1,
			},
			{
				Intent:        types.OrderIntent{ID: "i-2", Symbol: "AAPL", Side: types.PurchaseTypeSell, OrderType: types.OrderTypeMarket, Direction: types.DirectionExit},
				Handle:        "h-2",
				ExecutedAt:    start.Add(time.Hour),
				ExecutedQty:   10,
				ExecutedPrice: 105,
				Fee:           1,
				ClosedQty:     10,
				EntryPrice:    100,
				PnL:           49,
				OpenedAt:      start,
			},
		},
		Equity: []types.EquityPoint{
			{Time: start, Equity: 1000},
			{Time: start.Add(time.Hour), Equity: 1048},
		},
	}
}

func (s *ReportTestSuite) TestYAMLSink() {
	folder := filepath.Join(s.tempDir, "yaml")

	err := NewYAMLSink().Write(folder, s.report)
	s.Require().NoError(err)

	data, err := os.ReadFile(filepath.Join(folder, StatsFileName))
	s.Require().NoError(err)

	var decoded types.Report
	s.Require().NoError(yaml.Unmarshal(data, &decoded))
	s.Equal("run-1", decoded.ID)
	s.Equal("Alpha", decoded.Name)
	s.Equal(2, decoded.Stats.TradeResult.NumberOfTrades)
	s.InDelta(48.0, decoded.Stats.TradePnl.TotalPnL, 1e-9)
	s.InDelta(48.0, decoded.Fitness, 1e-9)
	s.Empty(decoded.Trades)
}

func (s *ReportTestSuite) TestParquetSink() {
	folder := filepath.Join(s.tempDir, "parquet")

	err := NewParquetSink().Write(folder, s.report)
	s.Require().NoError(err)

	db, err := sql.Open("duckdb", ":memory:")
	s.Require().NoError(err)
	defer db.Close()

	var (
		count int
		pnl   float64
		fees  float64
	)

	tradesPath := filepath.Join(folder, TradesFileName)
	err = db.QueryRow(fmt.Sprintf("SELECT COUNT(*), SUM(pnl), SUM(commission) FROM read_parquet('%s')", tradesPath)).Scan(&count, &pnl, &fees)
	s.Require().NoError(err)
	s.Equal(2, count)
	s.InDelta(48.0, pnl, 1e-9)
	s.InDelta(2.0, fees, 1e-9)

	var strategy string
	err = db.QueryRow(fmt.Sprintf("SELECT strategy_name FROM read_parquet('%s') WHERE handle = 'h-2'", tradesPath)).Scan(&strategy)
	s.Require().NoError(err)
	s.Equal("Alpha", strategy)

	var points int
	err = db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM read_parquet('%s')", filepath.Join(folder, EquityFileName))).Scan(&points)
	s.Require().NoError(err)
	s.Equal(2, points)
}

func (s *ReportTestSuite) TestParquetSinkWithoutTrades() {
	folder := filepath.Join(s.tempDir, "empty")
	report := s.report
	report.Trades = nil
	report.Equity = nil

	s.Require().NoError(NewParquetSink().Write(folder, report))
	s.FileExists(filepath.Join(folder, TradesFileName))
	s.FileExists(filepath.Join(folder, EquityFileName))
}

func (s *ReportTestSuite) TestMultiSink() {
	ctrl := gomock.NewController(s.T())
	defer ctrl.Finish()

	first := mocks.NewMockSink(ctrl)
	second := mocks.NewMockSink(ctrl)

	first.EXPECT().Write("out", s.report).Return(fmt.Errorf("first failed"))
	second.EXPECT().Write("out", s.report).Return(nil)

	err := MultiSink{first, nil, second}.Write("out", s.report)
	s.Error(err)
	s.Contains(err.Error(), "first failed")
}

func (s *ReportTestSuite) TestMultiSinkSuccess() {
	ctrl := gomock.NewController(s.T())
	defer ctrl.Finish()

	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().Write("out", gomock.Any()).Return(nil)

	s.NoError(MultiSink{sink}.Write("out", s.report))
}
