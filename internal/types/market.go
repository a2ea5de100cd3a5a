package types

import (
	"time"

	"github.com/marelab/backsim/pkg/errors"
)

// Bar is one OHLCV candle for a symbol. Bars are the only market input the
// engine consumes; it never fetches data itself.
type Bar struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Validate checks the bar for internal consistency.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return errors.New(errors.ErrCodeBadBarData, "bar symbol is empty")
	}

	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return errors.Newf(errors.ErrCodeBadBarData, "bar for %s has non-positive prices", b.Symbol)
	}

	if b.High < b.Low {
		return errors.Newf(errors.ErrCodeBadBarData, "bar for %s has high %f below low %f", b.Symbol, b.High, b.Low)
	}

	if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
		return errors.Newf(errors.ErrCodeBadBarData, "bar for %s has open/close outside [low, high]", b.Symbol)
	}

	if b.Volume < 0 {
		return errors.Newf(errors.ErrCodeBadBarData, "bar for %s has negative volume", b.Symbol)
	}

	return nil
}

// Range returns the high-low spread of the bar.
func (b *Bar) Range() float64 {
	return b.High - b.Low
}

// Crosses reports whether the bar's price range touches the given price.
func (b *Bar) Crosses(price float64) bool {
	return price >= b.Low && price <= b.High
}
