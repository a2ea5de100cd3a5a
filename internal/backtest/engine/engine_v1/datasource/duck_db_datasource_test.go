package datasource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marelab/backsim/internal/logger"
	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

const barFixture = `time,symbol,open,high,low,close,volume
2024-01-02T00:00:00Z,AAPL,150,152,149,151,10000
2024-01-02T00:00:00Z,MSFT,400,402,399,401,5000
2024-01-03T00:00:00Z,AAPL,151,153,150,152,12000
2024-01-04T00:00:00Z,AAPL,152,154,151,153,9000
`

type DuckDBDataSourceTestSuite struct {
	suite.Suite
	source DataSource
	path   string
}

func TestDuckDBDataSourceSuite(t *testing.T) {
	suite.Run(t, new(DuckDBDataSourceTestSuite))
}

func (suite *DuckDBDataSourceTestSuite) SetupTest() {
	suite.path = filepath.Join(suite.T().TempDir(), "bars.csv")
	suite.Require().NoError(os.WriteFile(suite.path, []byte(barFixture), 0o644))

	source, err := NewDataSource(logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.Require().NoError(source.Initialize(suite.path))
	suite.source = source
}

func (suite *DuckDBDataSourceTestSuite) TearDownTest() {
	suite.source.Close()
}

func (suite *DuckDBDataSourceTestSuite) collect(start, end optional.Option[time.Time]) []types.Bar {
	bars := make([]types.Bar, 0)

	for bar, err := range suite.source.ReadAll(start, end) {
		suite.Require().NoError(err)
		bars = append(bars, bar)
	}

	return bars
}

func (suite *DuckDBDataSourceTestSuite) TestReadAllOrdersByTimeThenSymbol() {
	bars := suite.collect(optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().Len(bars, 4)

	suite.Equal("AAPL", bars[0].Symbol)
	suite.Equal("MSFT", bars[1].Symbol)
	suite.Equal(bars[0].Time, bars[1].Time)
	suite.True(bars[2].Time.After(bars[1].Time))
	suite.Equal(150.0, bars[0].Open)
	suite.Equal(10_000.0, bars[0].Volume)
}

func (suite *DuckDBDataSourceTestSuite) TestReadAllWindow() {
	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC)

	bars := suite.collect(optional.Some(start), optional.Some(end))
	suite.Require().Len(bars, 1)
	suite.Equal(151.0, bars[0].Open)
}

func (suite *DuckDBDataSourceTestSuite) TestReadLastBar() {
	bar, err := suite.source.ReadLastBar("AAPL")
	suite.Require().NoError(err)
	suite.Equal(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), bar.Time.UTC())
	suite.Equal(153.0, bar.Close)

	_, err = suite.source.ReadLastBar("GOOG")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func (suite *DuckDBDataSourceTestSuite) TestCount() {
	count, err := suite.source.Count(optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(4, count)

	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	count, err = suite.source.Count(optional.Some(start), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(2, count)
}

func (suite *DuckDBDataSourceTestSuite) TestUnsupportedFormat() {
	source, err := NewDataSource(logger.NewNopLogger())
	suite.Require().NoError(err)

	defer source.Close()

	err = source.Initialize(filepath.Join(suite.T().TempDir(), "bars.txt"))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}
