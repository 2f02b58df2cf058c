/*
MIT License

Copyright (c) 2024 Norihiro Seto

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

// Package operator runs the spot termination watcher, the cleanup loop and
// the HTTP server of one operator replica.
package operator

import (
	"context"
	"errors"

	"github.com/norseto/kube-spot-operator/internal/cleanup"
	"github.com/norseto/kube-spot-operator/internal/cluster"
	"github.com/norseto/kube-spot-operator/internal/drain"
	"github.com/norseto/kube-spot-operator/internal/options"
	"github.com/norseto/kube-spot-operator/internal/server"
	"github.com/norseto/kube-spot-operator/internal/spot"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"
)

type Option func(*Operator)

// WithMetadataClient replaces the instance metadata client built from the
// options.
func WithMetadataClient(client spot.MetadataClient) Option {
	return func(o *Operator) {
		o.metadata = client
	}
}

type Operator struct {
	opts     *options.Options
	client   cluster.Client
	metadata spot.MetadataClient
}

// New returns an Operator talking to the cluster through kube. The instance
// metadata client is created only when EC2 watching is enabled.
func New(opts *options.Options, kube kubernetes.Interface, extra ...Option) *Operator {
	op := &Operator{
		opts:   opts,
		client: NewClusterClient(kube, opts),
	}
	for _, fn := range extra {
		fn(op)
	}
	if opts.EC2Enabled && op.metadata == nil {
		op.metadata = spot.NewMonitored(spot.NewMetadataClient(opts.EC2Endpoint))
	}
	return op
}

// NewClusterClient returns the monitored cluster client configured by opts.
func NewClusterClient(kube kubernetes.Interface, opts *options.Options) cluster.Client {
	return cluster.NewMonitored(cluster.New(kube, opts.RequestTimeout))
}

// NewDrainer returns a Drainer using the delay sequences of opts.
func NewDrainer(client cluster.Client, opts *options.Options) *drain.Drainer {
	return drain.New(client,
		drain.WithEvictionDelays(opts.EvictionDelays),
		drain.WithConfirmationDelays(opts.ConfirmationDelays),
	)
}

// Run blocks until ctx is cancelled or the HTTP server fails.
func (o *Operator) Run(ctx context.Context) error {
	log := logger.FromContext(ctx, "node", o.opts.NodeName)
	ctx = logger.WithContext(ctx, log)

	drainer := NewDrainer(o.client, o.opts)
	cleaner := cleanup.New(o.client, o.opts.NodeName)
	srv := server.New(o.opts.BindAddress, o.client, cleaner, server.WithExternalJWKSURI(o.opts.ExternalJWKSURI))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})

	if o.opts.CleanupEnabled {
		g.Go(func() error {
			cleaner.Start(ctx, o.opts.CleanupInterval)
			return nil
		})
	} else {
		log.Info("periodic cleanup is disabled")
	}

	if o.metadata != nil {
		watcher := spot.NewWatcher(o.metadata, o.opts.NodeName, o.opts.EC2PollInterval)
		g.Go(func() error {
			watcher.Start(ctx)
			return nil
		})
		g.Go(func() error {
			handleDrainRequests(ctx, drainer, watcher.Triggers())
			return nil
		})
	} else {
		log.Info("instance metadata watching is disabled")
	}

	log.Info("operator started")
	err := g.Wait()
	log.Info("operator stopped")
	return err
}

func handleDrainRequests(ctx context.Context, drainer *drain.Drainer, triggers <-chan spot.DrainRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-triggers:
			handleDrainRequest(ctx, drainer, req)
		}
	}
}

func handleDrainRequest(ctx context.Context, drainer *drain.Drainer, req spot.DrainRequest) {
	log := logger.FromContext(ctx, "target", req.NodeName, "reason", req.Reason)

	err := drainer.Drain(ctx, req.NodeName)
	var incomplete *drain.DrainIncompleteError
	switch {
	case err == nil:
		log.Info("node drained")
	case errors.As(err, &incomplete):
		log.Error(err, "drain incomplete", "remaining", incomplete.Remaining)
	default:
		log.Error(err, "drain failed")
	}
}
