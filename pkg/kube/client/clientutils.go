/*
MIT License

Copyright (c) 2019 Norihiro Seto

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package client

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

type kubeconfigSource int

const (
	kubeconfigSourceNone kubeconfigSource = iota
	kubeconfigSourceFlag
	kubeconfigSourceEnv
	kubeconfigSourceDefault
)

func (s kubeconfigSource) String() string {
	switch s {
	case kubeconfigSourceFlag:
		return "--kubeconfig flag"
	case kubeconfigSourceEnv:
		return "KUBECONFIG environment variable"
	case kubeconfigSourceDefault:
		return "default kubeconfig path"
	default:
		return "none"
	}
}

// Options represents the configuration options for a kubernetes client.
type Options struct {
	configFilePath string
	timeout        time.Duration
	userAgent      string
}

// BindFlags adds the "kubeconfig" flag to the given FlagSet.
func (o *Options) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.configFilePath, "kubeconfig", "", "absolute path to the kubeconfig file")
}

// BindPFlags adds the hidden "kubeconfig" flag to the given FlagSet.
func (o *Options) BindPFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configFilePath, "kubeconfig", "", "absolute path to the kubeconfig file")
	_ = fs.MarkHidden("kubeconfig")
}

// SetTimeout sets the timeout of every request made with the REST config.
// Zero means no timeout.
func (o *Options) SetTimeout(timeout time.Duration) {
	o.timeout = timeout
}

// SetUserAgent appends agent to the default client-go user agent.
func (o *Options) SetUserAgent(agent string) {
	o.userAgent = agent
}

// GetConfigFilePath resolves the kubeconfig file path from the flag, the
// KUBECONFIG environment variable or ~/.kube/config, in that order.
// An explicitly given path must exist and be a regular file. An empty path
// with kubeconfigSourceNone means in-cluster configuration.
func (o *Options) GetConfigFilePath() (string, kubeconfigSource, error) {
	if o.configFilePath != "" {
		return resolveConfigFile(o.configFilePath, kubeconfigSourceFlag)
	}
	if envVar := os.Getenv("KUBECONFIG"); envVar != "" {
		return resolveConfigFile(envVar, kubeconfigSourceEnv)
	}
	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".kube", "config")
		if resolved, source, err := resolveConfigFile(path, kubeconfigSourceDefault); err == nil {
			return resolved, source, nil
		}
	}
	return "", kubeconfigSourceNone, nil
}

func resolveConfigFile(path string, source kubeconfigSource) (string, kubeconfigSource, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", source, fmt.Errorf("invalid kubeconfig from %s: %w", source, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", source, fmt.Errorf("invalid kubeconfig from %s: %w", source, err)
	}
	if !info.Mode().IsRegular() {
		return "", source, fmt.Errorf("invalid kubeconfig from %s: %s must be a regular file", source, path)
	}
	return resolved, source, nil
}

type contextKey struct{}

// FromContext retrieves the *Options value from the given context.
// If the value exists and is of type *Options, it is returned.
// Otherwise, a new empty *Options is returned.
func FromContext(ctx context.Context) *Options {
	if v, ok := ctx.Value(contextKey{}).(*Options); ok && v != nil {
		return v
	}

	return &Options{}
}

// WithContext sets the value of the options in the given context.
func WithContext(ctx context.Context, opts *Options) context.Context {
	return context.WithValue(ctx, contextKey{}, opts)
}

// NewRESTConfig creates a REST config from the resolved kubeconfig, or from
// the in-cluster service account when no kubeconfig is found.
func NewRESTConfig(opts *Options) (*rest.Config, error) {
	kubeconfig, _, err := opts.GetConfigFilePath()
	if err != nil {
		return nil, err
	}

	var config *rest.Config
	if kubeconfig != "" {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		config, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, err
	}

	if opts.timeout > 0 {
		config.Timeout = opts.timeout
	}
	if opts.userAgent != "" {
		config = rest.AddUserAgent(config, opts.userAgent)
	}
	return config, nil
}

// NewClientset creates a new Kubernetes clientset.
func NewClientset(opts *Options) (*kubernetes.Clientset, error) {
	clnt, _, err := NewClientsetWithRestConfig(opts)

	return clnt, err
}

// NewClientsetWithRestConfig creates a new Kubernetes clientset and returns it
// together with the REST config it was built from.
func NewClientsetWithRestConfig(opts *Options) (*kubernetes.Clientset, *rest.Config, error) {
	config, err := NewRESTConfig(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create a REST config: %w", err)
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create a clientset: %w", err)
	}

	return client, config, nil
}
