package wspool

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", raw)
	}

	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config declares a pool of supervised endpoints.
type Config struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig declares one supervised connection.
type EndpointConfig struct {
	URL                string            `yaml:"url"`
	Timeout            Duration          `yaml:"timeout"`
	MaxConcurrentTasks int               `yaml:"max_concurrent_tasks"`
	PingInterval       Duration          `yaml:"ping_interval"`
	ReopenInterval     Duration          `yaml:"reopen_interval"`
	Headers            map[string]string `yaml:"headers"`
}

// LoadConfig reads a YAML pool config and expands ${VAR} environment
// variables, so credentials can stay out of the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Endpoints {
		if c.Endpoints[i].MaxConcurrentTasks == 0 {
			c.Endpoints[i].MaxConcurrentTasks = DefaultMaxConcurrentTasks
		}
	}
}

func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("at least one endpoint is required")
	}

	for _, e := range c.Endpoints {
		if err := validateEndpointURL(e.URL); err != nil {
			return err
		}
		if e.MaxConcurrentTasks < 1 {
			return errors.Errorf("endpoint %s: max_concurrent_tasks must be positive", e.URL)
		}
		if e.Timeout < 0 {
			return errors.Errorf("endpoint %s: timeout must not be negative", e.URL)
		}
	}

	return nil
}

// Options converts an endpoint declaration into supervisor options.
func (e EndpointConfig) Options() []Option {
	opts := []Option{
		WithMaxConcurrentTasks(e.MaxConcurrentTasks),
	}

	if e.Timeout > 0 {
		opts = append(opts, WithTimeout(e.Timeout.Std()))
	}
	if e.PingInterval > 0 {
		opts = append(opts, WithPingInterval(e.PingInterval.Std()))
	}
	if e.ReopenInterval > 0 {
		opts = append(opts, WithReopenInterval(e.ReopenInterval.Std()))
	}
	if len(e.Headers) > 0 {
		header := make(http.Header, len(e.Headers))
		for k, v := range e.Headers {
			header.Set(k, v)
		}
		opts = append(opts, WithHeader(header))
	}

	return opts
}

// Tasks builds one supervised-connection task per endpoint, ready to hand to
// RunPool. The extra options are appended to each endpoint's own, so shared
// concerns (handlers, logger, collector) are declared once.
func (c *Config) Tasks(shared ...Option) []Task {
	tasks := make([]Task, 0, len(c.Endpoints))

	for _, e := range c.Endpoints {
		opts := append(e.Options(), shared...)
		url := e.URL
		tasks = append(tasks, func(ctx context.Context) error {
			return Connect(ctx, url, opts...)
		})
	}

	return tasks
}
