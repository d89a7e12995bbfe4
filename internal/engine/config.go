package engine

import (
	"encoding/json"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-chain/internal/broker/commission_fee"
	"github.com/rxtech-lab/argo-chain/internal/exitstrategy"
	"github.com/rxtech-lab/argo-chain/internal/positionsize"
	"github.com/rxtech-lab/argo-chain/internal/signal"
	"github.com/rxtech-lab/argo-chain/internal/version"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StrategyConfig configures one independent strategy instance.
type StrategyConfig struct {
	Name         string                    `yaml:"name" json:"name" validate:"required,excludesall=/\\" jsonschema:"title=Name,description=Display name of the instance, also the name of its result folder"`
	Signal       signal.SMACrossoverConfig `yaml:"signal" json:"signal" jsonschema:"title=Signal,description=SMA crossover signal settings"`
	PositionSize positionsize.Config       `yaml:"position_size" json:"position_size" jsonschema:"title=Position Size,description=Default quantity of enter intents"`
	ExitStrategy exitstrategy.Config       `yaml:"exit_strategy" json:"exit_strategy" jsonschema:"title=Exit Strategy,description=Protective exit levels"`
	Commission   optional.Option[float64]  `yaml:"-" json:"commission_rate,omitempty" jsonschema:"title=Commission Rate,description=Overrides the rate of the percentage commission model for this instance"`
}

// Config is the backtest configuration.
type Config struct {
	EngineVersion    string                     `yaml:"engine_version" json:"engine_version,omitempty" jsonschema:"title=Engine Version,description=Engine version or semver constraint the config was written for"`
	InitialCapital   float64                    `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting capital of every instance in USD,minimum=0"`
	Broker           commission_fee.Broker      `yaml:"broker" json:"broker" validate:"omitempty,oneof=interactive_broker percentage zero_commission" jsonschema:"title=Broker,description=The broker to use for commission calculations"`
	CommissionRate   float64                    `yaml:"commission_rate" json:"commission_rate,omitempty" validate:"gte=0,lt=1" jsonschema:"title=Commission Rate,description=Rate of the percentage commission model,minimum=0,maximum=1"`
	DecimalPrecision int                        `yaml:"decimal_precision" json:"decimal_precision" validate:"gte=0" jsonschema:"title=Decimal Precision,description=Decimal places of filled quantities,minimum=0"`
	AllowShort       bool                       `yaml:"allow_short" json:"allow_short" jsonschema:"title=Allow Short,description=Let sells exceed the holding"`
	Timeframe        string                     `yaml:"timeframe" json:"timeframe,omitempty" jsonschema:"title=Timeframe,description=Timeframe of the bars in the data file"`
	StartTime        optional.Option[time.Time] `yaml:"-" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period"`
	EndTime          optional.Option[time.Time] `yaml:"-" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period"`
	Strategies       []StrategyConfig           `yaml:"strategies" json:"strategies" validate:"required,min=1,unique=Name,dive" jsonschema:"title=Strategies,description=Independent strategy instances run side by side"`
}

type rawStrategyConfig StrategyConfig

// UnmarshalYAML decodes the optional commission rate.
func (s *StrategyConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		rawStrategyConfig `yaml:",inline"`
		Commission        *float64 `yaml:"commission_rate"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	*s = StrategyConfig(raw.rawStrategyConfig)
	if raw.Commission != nil {
		s.Commission = optional.Some(*raw.Commission)
	}

	return nil
}

type rawConfig Config

// UnmarshalYAML decodes the optional time bounds.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		rawConfig `yaml:",inline"`
		StartTime *time.Time `yaml:"start_time"`
		EndTime   *time.Time `yaml:"end_time"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	*c = Config(raw.rawConfig)
	if raw.StartTime != nil {
		c.StartTime = optional.Some(*raw.StartTime)
	}

	if raw.EndTime != nil {
		c.EndTime = optional.Some(*raw.EndTime)
	}

	return nil
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	return ParseConfig(content)
}

// ParseConfig decodes a YAML config, applies defaults and validates it.
func ParseConfig(content []byte) (Config, error) {
	config := EmptyConfig()
	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Broker == "" {
		c.Broker = commission_fee.BrokerZero
	}

	for i := range c.Strategies {
		sma := &c.Strategies[i].Signal
		if sma.ShortPeriod == 0 {
			sma.ShortPeriod = 5
		}

		if sma.LongPeriod == 0 {
			sma.LongPeriod = 20
		}

		if c.Strategies[i].PositionSize.DecimalPrecision == 0 {
			c.Strategies[i].PositionSize.DecimalPrecision = c.DecimalPrecision
		}
	}
}

// Validate checks the struct constraints, the time range and the engine version.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time is before start_time")
	}

	for _, s := range c.Strategies {
		if rate, err := s.Commission.Take(); err == nil && (rate < 0 || rate >= 1) {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "commission rate %v of %s is out of range", rate, s.Name)
		}
	}

	return version.CheckCompatibility(version.GetVersion(), c.EngineVersion)
}

// CommissionFor returns the commission model of an instance.
func (c *Config) CommissionFor(s StrategyConfig) commission_fee.CommissionFee {
	if rate, err := s.Commission.Take(); err == nil {
		return commission_fee.NewPercentageCommissionFee(rate)
	}

	if c.Broker == commission_fee.BrokerPercentage && c.CommissionRate > 0 {
		return commission_fee.NewPercentageCommissionFee(c.CommissionRate)
	}

	return commission_fee.GetCommissionFeeHandler(c.Broker)
}

// GenerateSchema generates a JSON schema for the Config
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch {
			case t == reflect.TypeOf(optional.Option[time.Time]{}):
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			case t == reflect.TypeOf(optional.Option[float64]{}):
				return &jsonschema.Schema{
					Type: "number",
				}
			case strings.HasSuffix(t.String(), "commission_fee.Broker"):
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllBrokers,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "argo-chain-backtest-config"
	schema.Description = "Configuration schema for the argo-chain backtest engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the Config
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

// EmptyConfig returns a Config with default values
func EmptyConfig() Config {
	return Config{
		Broker:    commission_fee.BrokerZero,
		StartTime: optional.None[time.Time](),
		EndTime:   optional.None[time.Time](),
	}
}
