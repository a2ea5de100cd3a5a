package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/marelab/backsim/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/marelab/backsim/internal/backtest/engine/engine_v1/slippage"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v2"
)

// DefaultPeriodsPerYear annualizes Sharpe/Sortino for daily bars.
const DefaultPeriodsPerYear = 252

// Config is the immutable set of run parameters consumed at engine
// construction. Invalid configuration fails fast, before any bar is
// processed. A value of LiquidityLimitPct <= 0 disables the liquidity cap;
// MaxDrawdownStop >= 1 disables the drawdown halt.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting cash for the backtest,minimum=0"`

	FeeModel commission_fee.Model `yaml:"fee_model" json:"fee_model" jsonschema:"title=Fee Model,description=Commission model applied at fill time"`
	FeeFlat  float64              `yaml:"fee_flat" json:"fee_flat" jsonschema:"title=Flat Fee,description=Flat fee per fill,minimum=0"`
	FeePct   float64              `yaml:"fee_pct" json:"fee_pct" jsonschema:"title=Percentage Fee,description=Fee as a fraction of fill notional,minimum=0"`

	SlippageModel   slippage.Model `yaml:"slippage_model" json:"slippage_model" jsonschema:"title=Slippage Model,description=Adverse price offset model"`
	SlippagePct     float64        `yaml:"slippage_pct" json:"slippage_pct" jsonschema:"title=Fixed Slippage,description=Fixed-percentage slippage fraction,minimum=0"`
	VolatilityCoeff float64        `yaml:"volatility_coeff" json:"volatility_coeff" jsonschema:"title=Volatility Coefficient,description=Slippage per unit of bar range,minimum=0"`
	SpreadPct       float64        `yaml:"spread_pct" json:"spread_pct" jsonschema:"title=Spread,description=Bid/ask spread as a fraction of price,minimum=0"`

	// LiquidityLimitPct caps a single fill at this fraction of bar volume.
	LiquidityLimitPct float64 `yaml:"liquidity_limit_pct" json:"liquidity_limit_pct" jsonschema:"title=Liquidity Limit,description=Maximum fraction of a bar's volume usable by one fill,minimum=0,maximum=1"`
	// MaxLeverage bounds post-fill gross exposure relative to equity.
	MaxLeverage float64 `yaml:"max_leverage" json:"max_leverage" jsonschema:"title=Max Leverage,description=Maximum gross exposure over equity,minimum=0"`
	// MaxPositionPct bounds a single order's notional relative to equity.
	MaxPositionPct float64 `yaml:"max_position_pct" json:"max_position_pct" jsonschema:"title=Max Position,description=Maximum order notional as a fraction of equity,minimum=0"`
	// MaxDrawdownStop halts new entries once running drawdown reaches this fraction.
	MaxDrawdownStop float64 `yaml:"max_drawdown_stop" json:"max_drawdown_stop" jsonschema:"title=Drawdown Halt,description=Running drawdown fraction that halts new entries,minimum=0"`

	PeriodsPerYear int `yaml:"periods_per_year" json:"periods_per_year" jsonschema:"title=Periods Per Year,description=Annualization factor for Sharpe and Sortino,minimum=1"`

	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the backtest window"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the backtest window"`
}

// UnmarshalYAML implements custom unmarshaling for Config, applying defaults
// for fields the file omits.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig struct {
		InitialCapital    float64               `yaml:"initial_capital"`
		FeeModel          commission_fee.Model  `yaml:"fee_model"`
		FeeFlat           float64               `yaml:"fee_flat"`
		FeePct            float64               `yaml:"fee_pct"`
		SlippageModel     slippage.Model        `yaml:"slippage_model"`
		SlippagePct       float64               `yaml:"slippage_pct"`
		VolatilityCoeff   float64               `yaml:"volatility_coeff"`
		SpreadPct         float64               `yaml:"spread_pct"`
		LiquidityLimitPct float64               `yaml:"liquidity_limit_pct"`
		MaxLeverage       *float64              `yaml:"max_leverage"`
		MaxPositionPct    *float64              `yaml:"max_position_pct"`
		MaxDrawdownStop   *float64              `yaml:"max_drawdown_stop"`
		PeriodsPerYear    *int                  `yaml:"periods_per_year"`
		StartTime         *time.Time            `yaml:"start_time"`
		EndTime           *time.Time            `yaml:"end_time"`
	}

	var raw rawConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}

	*c = defaultConfig()
	c.InitialCapital = raw.InitialCapital
	c.FeeFlat = raw.FeeFlat
	c.FeePct = raw.FeePct
	c.SlippagePct = raw.SlippagePct
	c.VolatilityCoeff = raw.VolatilityCoeff
	c.SpreadPct = raw.SpreadPct
	c.LiquidityLimitPct = raw.LiquidityLimitPct

	if raw.FeeModel != "" {
		c.FeeModel = raw.FeeModel
	}

	if raw.SlippageModel != "" {
		c.SlippageModel = raw.SlippageModel
	}

	if raw.MaxLeverage != nil {
		c.MaxLeverage = *raw.MaxLeverage
	}

	if raw.MaxPositionPct != nil {
		c.MaxPositionPct = *raw.MaxPositionPct
	}

	if raw.MaxDrawdownStop != nil {
		c.MaxDrawdownStop = *raw.MaxDrawdownStop
	}

	if raw.PeriodsPerYear != nil {
		c.PeriodsPerYear = *raw.PeriodsPerYear
	}

	if raw.StartTime != nil {
		c.StartTime = optional.Some(*raw.StartTime)
	}

	if raw.EndTime != nil {
		c.EndTime = optional.Some(*raw.EndTime)
	}

	return nil
}

func defaultConfig() Config {
	return Config{
		InitialCapital:    0,
		FeeModel:          commission_fee.ModelZero,
		FeeFlat:           0,
		FeePct:            0,
		SlippageModel:     slippage.ModelNone,
		SlippagePct:       0,
		VolatilityCoeff:   0,
		SpreadPct:         0,
		LiquidityLimitPct: 0,
		MaxLeverage:       1,
		MaxPositionPct:    1,
		MaxDrawdownStop:   1,
		PeriodsPerYear:    DefaultPeriodsPerYear,
		StartTime:         optional.None[time.Time](),
		EndTime:           optional.None[time.Time](),
	}
}

// EmptyConfig returns a Config with default values.
func EmptyConfig() Config {
	return defaultConfig()
}

// ParseConfig parses a YAML document into a validated Config.
func ParseConfig(content string) (Config, error) {
	config := defaultConfig()
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// TestConfig returns a config suitable for tests: zero fees, no slippage,
// no liquidity cap, permissive limits.
func TestConfig(initialCapital float64) Config {
	config := defaultConfig()
	config.InitialCapital = initialCapital
	config.MaxLeverage = 100
	config.MaxPositionPct = 1

	return config
}

// Validate fails fast on contradictory or malformed run parameters.
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "initial capital must be positive, got %f", c.InitialCapital)
	}

	if c.FeeFlat < 0 || c.FeePct < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "fees must be non-negative")
	}

	if c.SlippagePct < 0 || c.VolatilityCoeff < 0 || c.SpreadPct < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "slippage parameters must be non-negative")
	}

	if c.LiquidityLimitPct < 0 || c.LiquidityLimitPct > 1 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "liquidity limit must be within [0, 1], got %f", c.LiquidityLimitPct)
	}

	if c.MaxLeverage <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "max leverage must be positive, got %f", c.MaxLeverage)
	}

	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "max position fraction must be within (0, 1], got %f", c.MaxPositionPct)
	}

	if c.MaxDrawdownStop <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "drawdown halt must be positive, got %f", c.MaxDrawdownStop)
	}

	if c.PeriodsPerYear < 1 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "periods per year must be at least 1, got %d", c.PeriodsPerYear)
	}

	validFee := false

	for _, model := range commission_fee.AllModels {
		if model == c.FeeModel {
			validFee = true

			break
		}
	}

	if !validFee {
		return errors.Newf(errors.ErrCodeUnknownFeeModel, "unknown fee model %q", c.FeeModel)
	}

	validSlippage := false

	for _, model := range slippage.AllModels {
		if model == c.SlippageModel {
			validSlippage = true

			break
		}
	}

	if !validSlippage {
		return errors.Newf(errors.ErrCodeUnknownSlippageModel, "unknown slippage model %q", c.SlippageModel)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end time is before start time")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if strings.Contains(t.String(), "commission_fee.Model") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllModels,
				}
			}

			if strings.Contains(t.String(), "slippage.Model") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: slippage.AllModels,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backsim-engine-config"
	schema.Description = "Configuration schema for the backtest execution engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
