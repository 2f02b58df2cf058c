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

package drain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/norseto/kube-spot-operator/internal/cluster"
	"github.com/norseto/kube-spot-operator/internal/metrics"
	"github.com/norseto/kube-spot-operator/pkg/kube"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"github.com/norseto/kube-spot-operator/pkg/retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	// DefaultEvictionDelays are the waits between eviction attempts of one pod.
	DefaultEvictionDelays = retry.Delays{3 * time.Second, 5 * time.Second, 10 * time.Second}
	// DefaultConfirmationDelays are the waits between checks that the node is empty.
	DefaultConfirmationDelays = retry.Delays{3 * time.Second, 5 * time.Second, 10 * time.Second, 20 * time.Second, 20 * time.Second}
)

// DrainIncompleteError is returned when evictable pods are still running on
// the node after the confirmation retries are exhausted.
type DrainIncompleteError struct {
	Node      string
	Remaining int
}

func (e *DrainIncompleteError) Error() string {
	return fmt.Sprintf("there are still %d pod(s) on node %s", e.Remaining, e.Node)
}

// Option configures a Drainer.
type Option func(*Drainer)

// WithEvictionDelays sets the retry delays of a single pod eviction.
func WithEvictionDelays(delays retry.Delays) Option {
	return func(d *Drainer) {
		d.evictionDelays = delays
	}
}

// WithConfirmationDelays sets the retry delays of the empty node check.
func WithConfirmationDelays(delays retry.Delays) Option {
	return func(d *Drainer) {
		d.confirmationDelays = delays
	}
}

// Drainer cordons nodes and evicts their pods.
type Drainer struct {
	client             cluster.Client
	evictionDelays     retry.Delays
	confirmationDelays retry.Delays
	inflight           singleflight.Group
}

// New returns a Drainer using client.
func New(client cluster.Client, opts ...Option) *Drainer {
	d := &Drainer{
		client:             client,
		evictionDelays:     DefaultEvictionDelays,
		confirmationDelays: DefaultConfirmationDelays,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Drain cordons the node, evicts every pod not owned by a DaemonSet and
// waits until none of them is left. Evictions that keep failing are logged
// and left to the final check, which fails with *DrainIncompleteError.
// Concurrent calls for the same node share one drain and its result.
func (d *Drainer) Drain(ctx context.Context, nodeName string) error {
	_, err, shared := d.inflight.Do(nodeName, func() (interface{}, error) {
		return nil, d.drain(ctx, nodeName)
	})
	if shared {
		logger.FromContext(ctx).V(1).Info("joined in-flight drain", "node", nodeName)
	}
	return err
}

func (d *Drainer) drain(ctx context.Context, nodeName string) (err error) {
	log := logger.FromContext(ctx, "node", nodeName)
	ctx = logger.WithContext(ctx, log)
	defer func() {
		metrics.DrainsTotal.WithLabelValues(metrics.Status(err)).Inc()
	}()

	result, err := d.client.CordonNode(ctx, nodeName)
	if err != nil {
		log.Error(err, "failed to cordon node")
		return fmt.Errorf("failed to cordon node %s: %w", nodeName, err)
	}
	if result == kube.AlreadyCordoned {
		log.V(1).Info("node already cordoned")
	} else {
		log.Info("node cordoned")
	}

	pods, err := d.client.ListNodePods(ctx, nodeName)
	if err != nil {
		log.Error(err, "failed to list pods on node")
		return fmt.Errorf("failed to list pods on node %s: %w", nodeName, err)
	}
	candidates := kube.FilterEvictionCandidates(pods)
	if len(candidates) == 0 {
		log.Info("no evictable pods are running on node")
	} else {
		d.evictAll(ctx, candidates)
	}

	if err := d.awaitEvicted(ctx, nodeName); err != nil {
		log.Error(err, "drain incomplete")
		return err
	}
	log.Info("node drained", "evicted", len(candidates))
	return nil
}

// evictAll evicts pods concurrently. A failed eviction never cancels the others.
func (d *Drainer) evictAll(ctx context.Context, pods []kube.Pod) {
	log := logger.FromContext(ctx)

	var mu sync.Mutex
	var failed []string
	var g errgroup.Group
	for _, pod := range pods {
		pod := pod
		g.Go(func() error {
			if err := d.evict(ctx, pod); err != nil {
				log.Error(err, "failed to evict pod", "pod", pod.String())
				metrics.EvictionsTotal.WithLabelValues(metrics.StatusFailure).Inc()
				mu.Lock()
				failed = append(failed, pod.String())
				mu.Unlock()
				return nil
			}
			log.Info("pod evicted", "pod", pod.String())
			metrics.EvictionsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		log.Info("some pods were not evicted", "pods", failed)
	}
}

func (d *Drainer) evict(ctx context.Context, pod kube.Pod) error {
	logger.FromContext(ctx).Info("evicting pod", "pod", pod.String(), "owner", pod.OwnerKind)
	return retry.Do(ctx, "evict pod "+pod.String(), d.evictionDelays, func(ctx context.Context) error {
		err := d.client.EvictPod(ctx, pod.Name, pod.Namespace)
		if kube.IsNotFound(err) {
			return nil
		}
		return err
	})
}

// awaitEvicted re-lists the pods of the node until no eviction candidate is left.
func (d *Drainer) awaitEvicted(ctx context.Context, nodeName string) error {
	return retry.Do(ctx, "await pods evicted", d.confirmationDelays, func(ctx context.Context) error {
		pods, err := d.client.ListNodePods(ctx, nodeName)
		if err != nil {
			return err
		}
		if remaining := len(kube.FilterEvictionCandidates(pods)); remaining > 0 {
			return &DrainIncompleteError{Node: nodeName, Remaining: remaining}
		}
		return nil
	})
}
