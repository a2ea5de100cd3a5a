// Package datasource loads bar data for backtest runs. Bars are served in
// ascending time order; drivers group rows sharing a timestamp into one
// engine step.
package datasource

import (
	"time"

	"github.com/marelab/backsim/internal/types"
	"github.com/moznion/go-optional"
)

type DataSource interface {
	// Initialize loads bar data from the given file. The format is chosen by
	// extension: .csv or .parquet.
	Initialize(path string) error
	// ReadAll yields every bar in (time, symbol) order, optionally bounded
	// by an inclusive time window.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool)
	// ReadLastBar returns the latest bar for a symbol.
	ReadLastBar(symbol string) (types.Bar, error)
	// Count returns the number of bars, optionally bounded by an inclusive
	// time window.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close releases the data source.
	Close() error
}
