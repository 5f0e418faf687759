package statsd

import (
	"time"

	std "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/goto/salt/log"
)

// Client is the subset of the datadog statsd client used by Reporter.
type Client interface {
	Incr(name string, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
	Close() error
}

// Reporter provides functions for reporting metrics. A nil or disabled
// Reporter accepts every call and publishes nothing.
type Reporter struct {
	client Client
	logger log.Logger
	config Config
}

// Init validates the config and initializes the statsD client.
func Init(logger log.Logger, cfg Config) (*Reporter, error) {
	if !cfg.Enabled {
		logger.Debug("statsd is disabled")
		return &Reporter{logger: logger, config: cfg}, nil
	}

	client, err := std.New(cfg.Address,
		std.WithNamespace(cfg.Prefix+"."),
		std.WithoutTelemetry())
	if err != nil {
		return nil, err
	}

	return NewWithClient(logger, cfg, client), nil
}

// NewWithClient builds a Reporter around an existing client.
func NewWithClient(logger log.Logger, cfg Config, client Client) *Reporter {
	return &Reporter{client: client, logger: logger, config: cfg}
}

// Close flushes buffered metrics and closes the statsd connection.
func (sd *Reporter) Close() {
	if sd == nil || sd.client == nil {
		return
	}
	if err := sd.client.Close(); err != nil {
		sd.logger.Warn("failed to close statsd client", "err", err)
	}
}

// Incr returns a increment counter metric.
func (sd *Reporter) Incr(name string) *Metric {
	if sd == nil {
		return nil
	}
	return sd.metric(name, func(name string, tags []string, rate float64) error {
		return sd.client.Incr(name, tags, rate)
	})
}

// Timing returns a timer metric.
func (sd *Reporter) Timing(name string, value time.Duration) *Metric {
	if sd == nil {
		return nil
	}
	return sd.metric(name, func(name string, tags []string, rate float64) error {
		return sd.client.Timing(name, value, tags, rate)
	})
}

func (sd *Reporter) metric(name string, publish func(name string, tags []string, rate float64) error) *Metric {
	return &Metric{
		rate:          sd.config.SamplingRate,
		logger:        sd.logger,
		name:          name,
		withInfluxTag: sd.config.WithInfluxTagFormat,
		publishFunc: func(name string, tags []string, rate float64) error {
			if sd.client == nil {
				return nil
			}
			return publish(name, tags, rate)
		},
	}
}
