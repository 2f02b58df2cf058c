package options

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	spotoperator "github.com/norseto/kube-spot-operator"
	"github.com/norseto/kube-spot-operator/internal/cleanup"
	"github.com/norseto/kube-spot-operator/internal/drain"
	"github.com/norseto/kube-spot-operator/internal/pkg/validation"
	"github.com/norseto/kube-spot-operator/internal/server"
	"github.com/norseto/kube-spot-operator/internal/spot"
	"github.com/norseto/kube-spot-operator/pkg/kube/client"
	"github.com/norseto/kube-spot-operator/pkg/retry"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const (
	NodeNameEnv = "NODE_NAME"

	DefaultRequestTimeout = 5 * time.Second
	DefaultEC2Endpoint    = "http://169.254.169.254"

	envPrefix = "$env:"
)

const (
	flagConfig             = "config"
	flagNodeName           = "node-name"
	flagCleanupEnabled     = "cleanup-enabled"
	flagCleanupInterval    = "cleanup-interval"
	flagRequestTimeout     = "request-timeout"
	flagEvictionDelays     = "eviction-delays"
	flagConfirmationDelays = "confirmation-delays"
	flagEC2Enabled         = "ec2-enabled"
	flagEC2PollInterval    = "ec2-poll-interval"
	flagEC2Endpoint        = "ec2-endpoint"
	flagBindAddress        = "bind-address"
	flagExternalJWKSURI    = "external-jwks-uri"
)

// Options represents the operator configuration.
type Options struct {
	NodeName           string
	CleanupEnabled     bool
	CleanupInterval    time.Duration
	RequestTimeout     time.Duration
	EvictionDelays     retry.Delays
	ConfirmationDelays retry.Delays
	EC2Enabled         bool
	EC2PollInterval    time.Duration
	EC2Endpoint        string
	BindAddress        string
	ExternalJWKSURI    string

	configFile string
}

// NewOptions returns Options filled with the defaults.
func NewOptions() *Options {
	return &Options{
		NodeName:           os.Getenv(NodeNameEnv),
		CleanupEnabled:     true,
		CleanupInterval:    cleanup.DefaultInterval,
		RequestTimeout:     DefaultRequestTimeout,
		EvictionDelays:     append(retry.Delays{}, drain.DefaultEvictionDelays...),
		ConfirmationDelays: append(retry.Delays{}, drain.DefaultConfirmationDelays...),
		EC2Enabled:         true,
		EC2PollInterval:    spot.DefaultInterval,
		EC2Endpoint:        DefaultEC2Endpoint,
		BindAddress:        server.DefaultBindAddress,
	}
}

// BindFlags binds the options to fs using the current values as defaults.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configFile, flagConfig, o.configFile, "path to a YAML or JSON configuration file")
	fs.StringVar(&o.NodeName, flagNodeName, o.NodeName, "name of the node this operator runs on (env "+NodeNameEnv+")")
	fs.BoolVar(&o.CleanupEnabled, flagCleanupEnabled, o.CleanupEnabled, "delete broken nodes periodically")
	fs.DurationVar(&o.CleanupInterval, flagCleanupInterval, o.CleanupInterval, "interval between cleanup cycles")
	fs.DurationVar(&o.RequestTimeout, flagRequestTimeout, o.RequestTimeout, "timeout of a single Kubernetes API call")
	fs.Var(&o.EvictionDelays, flagEvictionDelays, "comma separated waits between pod eviction attempts")
	fs.Var(&o.ConfirmationDelays, flagConfirmationDelays, "comma separated waits between drain confirmation checks")
	fs.BoolVar(&o.EC2Enabled, flagEC2Enabled, o.EC2Enabled, "watch the EC2 instance metadata for termination notices")
	fs.DurationVar(&o.EC2PollInterval, flagEC2PollInterval, o.EC2PollInterval, "interval between instance metadata polls")
	fs.StringVar(&o.EC2Endpoint, flagEC2Endpoint, o.EC2Endpoint, "instance metadata service endpoint")
	fs.StringVar(&o.BindAddress, flagBindAddress, o.BindAddress, "address the HTTP server listens on")
	fs.StringVar(&o.ExternalJWKSURI, flagExternalJWKSURI, o.ExternalJWKSURI, "jwks_uri published in the OpenID configuration")
}

// ConfigFile returns the configuration file path given on the command line.
func (o *Options) ConfigFile() string {
	return o.configFile
}

// ClientOptions returns the kubernetes client options stored in ctx with the
// request timeout and user agent of the operator applied.
func (o *Options) ClientOptions(ctx context.Context) *client.Options {
	opts := client.FromContext(ctx)
	opts.SetTimeout(o.RequestTimeout)
	opts.SetUserAgent(UserAgent())
	return opts
}

// UserAgent returns the user agent suffix sent to the API server.
func UserAgent() string {
	return "kube-spot-operator/" + spotoperator.RELEASE_VERSION
}

// fileConfig is the layout of the configuration file.
type fileConfig struct {
	NodeName           *string           `json:"nodeName,omitempty"`
	RequestTimeout     *metav1.Duration  `json:"requestTimeout,omitempty"`
	EvictionDelays     []metav1.Duration `json:"evictionDelays,omitempty"`
	ConfirmationDelays []metav1.Duration `json:"confirmationDelays,omitempty"`
	Cleanup            struct {
		Enabled  *bool            `json:"enabled,omitempty"`
		Interval *metav1.Duration `json:"interval,omitempty"`
	} `json:"cleanup,omitempty"`
	EC2 struct {
		Enabled      *bool            `json:"enabled,omitempty"`
		PollInterval *metav1.Duration `json:"pollInterval,omitempty"`
		Endpoint     *string          `json:"endpoint,omitempty"`
	} `json:"ec2,omitempty"`
	Server struct {
		BindAddress     *string `json:"bindAddress,omitempty"`
		ExternalJWKSURI *string `json:"externalJwksUri,omitempty"`
	} `json:"server,omitempty"`
}

// Complete loads the configuration file, if any. A value from the file is
// applied only when the corresponding flag was not set on the command line.
func (o *Options) Complete(fs *pflag.FlagSet) error {
	if o.configFile == "" {
		return nil
	}
	data, err := os.ReadFile(o.configFile)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", o.configFile)
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return errors.Wrapf(err, "failed to load config file %s", o.configFile)
	}
	o.apply(cfg, fs)
	return nil
}

func (o *Options) apply(cfg *fileConfig, fs *pflag.FlagSet) {
	unset := func(name string) bool {
		return fs == nil || !fs.Changed(name)
	}
	durations := func(in []metav1.Duration) retry.Delays {
		return lo.Map(in, func(d metav1.Duration, _ int) time.Duration { return d.Duration })
	}

	if cfg.NodeName != nil && unset(flagNodeName) {
		o.NodeName = *cfg.NodeName
	}
	if cfg.RequestTimeout != nil && unset(flagRequestTimeout) {
		o.RequestTimeout = cfg.RequestTimeout.Duration
	}
	if cfg.EvictionDelays != nil && unset(flagEvictionDelays) {
		o.EvictionDelays = durations(cfg.EvictionDelays)
	}
	if cfg.ConfirmationDelays != nil && unset(flagConfirmationDelays) {
		o.ConfirmationDelays = durations(cfg.ConfirmationDelays)
	}
	if cfg.Cleanup.Enabled != nil && unset(flagCleanupEnabled) {
		o.CleanupEnabled = *cfg.Cleanup.Enabled
	}
	if cfg.Cleanup.Interval != nil && unset(flagCleanupInterval) {
		o.CleanupInterval = cfg.Cleanup.Interval.Duration
	}
	if cfg.EC2.Enabled != nil && unset(flagEC2Enabled) {
		o.EC2Enabled = *cfg.EC2.Enabled
	}
	if cfg.EC2.PollInterval != nil && unset(flagEC2PollInterval) {
		o.EC2PollInterval = cfg.EC2.PollInterval.Duration
	}
	if cfg.EC2.Endpoint != nil && unset(flagEC2Endpoint) {
		o.EC2Endpoint = *cfg.EC2.Endpoint
	}
	if cfg.Server.BindAddress != nil && unset(flagBindAddress) {
		o.BindAddress = *cfg.Server.BindAddress
	}
	if cfg.Server.ExternalJWKSURI != nil && unset(flagExternalJWKSURI) {
		o.ExternalJWKSURI = *cfg.Server.ExternalJWKSURI
	}
}

// parseConfig decodes a YAML or JSON document after resolving "$env:NAME"
// string values from the environment.
func parseConfig(data []byte) (*fileConfig, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid config document")
	}
	resolved, err := resolveEnv(raw, "")
	if err != nil {
		return nil, err
	}
	normalized, err := yaml.Marshal(resolved)
	if err != nil {
		return nil, errors.Wrap(err, "failed to normalize config document")
	}
	cfg := &fileConfig{}
	if err := yaml.UnmarshalStrict(normalized, cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config document")
	}
	return cfg, nil
}

func resolveEnv(v interface{}, path string) (interface{}, error) {
	switch value := v.(type) {
	case string:
		if !strings.HasPrefix(value, envPrefix) {
			return value, nil
		}
		name := strings.TrimPrefix(value, envPrefix)
		resolved, ok := os.LookupEnv(name)
		if !ok {
			return nil, errors.Errorf("environment variable %s referenced by %s is not set", name, path)
		}
		return resolved, nil
	case map[string]interface{}:
		for k, item := range value {
			r, err := resolveEnv(item, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			value[k] = r
		}
		return value, nil
	case []interface{}:
		for i, item := range value {
			r, err := resolveEnv(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			value[i] = r
		}
		return value, nil
	}
	return v, nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// Validate checks every option and returns all problems at once.
func (o *Options) Validate() error {
	var err error
	if o.NodeName == "" {
		err = multierr.Append(err, errors.Errorf("node name is required: set --%s or %s", flagNodeName, NodeNameEnv))
	} else {
		err = multierr.Append(err, validation.ValidateNodeName(o.NodeName))
	}
	err = multierr.Append(err, validation.ValidatePositiveDuration("request timeout", o.RequestTimeout))
	err = multierr.Append(err, validation.ValidateDelays("eviction delays", o.EvictionDelays))
	err = multierr.Append(err, validation.ValidateDelays("confirmation delays", o.ConfirmationDelays))
	if o.CleanupEnabled {
		err = multierr.Append(err, validation.ValidatePositiveDuration("cleanup interval", o.CleanupInterval))
	}
	if o.EC2Enabled {
		err = multierr.Append(err, validation.ValidatePositiveDuration("ec2 poll interval", o.EC2PollInterval))
		err = multierr.Append(err, validation.ValidateURL(o.EC2Endpoint))
	}
	err = multierr.Append(err, validation.ValidateBindAddress(o.BindAddress))
	if o.ExternalJWKSURI != "" {
		err = multierr.Append(err, validation.ValidateURL(o.ExternalJWKSURI))
	}
	return err
}
