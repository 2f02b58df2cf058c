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

package cleanup

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/norseto/kube-spot-operator/internal/cluster"
	"github.com/norseto/kube-spot-operator/internal/metrics"
	"github.com/norseto/kube-spot-operator/pkg/kube"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultInterval is the period between cleanup cycles.
const DefaultInterval = 2 * time.Minute

// Cleaner deletes broken nodes for which its own node is the executioner.
type Cleaner struct {
	client   cluster.Client
	nodeName string
}

// New returns a Cleaner acting as nodeName.
func New(client cluster.Client, nodeName string) *Cleaner {
	return &Cleaner{client: client, nodeName: nodeName}
}

// Plan lists the fleet and returns it with every deletion decision,
// regardless of the executioner.
func (c *Cleaner) Plan(ctx context.Context) ([]kube.Node, []kube.ScheduledNodeDelete, error) {
	nodes, err := c.client.ListNodes(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nodes, SelectDeletions(nodes), nil
}

// RunCycle deletes the nodes assigned to this node and returns the names of
// the deleted ones. A failed deletion is logged and does not stop the others.
// A failure to list nodes is returned without deleting anything.
func (c *Cleaner) RunCycle(ctx context.Context) ([]string, error) {
	log := logger.FromContext(ctx, "node", c.nodeName)

	_, decisions, err := c.Plan(ctx)
	if err != nil {
		log.Error(err, "failed to list nodes, skipping cleanup cycle")
		metrics.CleanupCyclesTotal.WithLabelValues(metrics.StatusFailure).Inc()
		return nil, err
	}
	defer metrics.CleanupCyclesTotal.WithLabelValues(metrics.StatusSuccess).Inc()

	targets := lo.FilterMap(decisions, func(d kube.ScheduledNodeDelete, _ int) (string, bool) {
		return d.NodeName, d.ExecutionerNode == c.nodeName
	})
	if len(targets) == 0 {
		log.V(1).Info("no nodes to clean up", "scheduled", len(decisions))
		return nil, nil
	}
	log.Info("found nodes to be deleted", "targets", targets)

	var mu sync.Mutex
	var deleted []string
	var g errgroup.Group
	for _, target := range targets {
		target := target
		g.Go(func() error {
			if err := c.client.DeleteNode(ctx, target); err != nil {
				log.Error(err, "failed to delete node", "target", target)
				metrics.NodeDeletionsTotal.WithLabelValues(metrics.StatusFailure).Inc()
				return nil
			}
			log.Info("node deleted", "target", target)
			metrics.NodeDeletionsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
			mu.Lock()
			deleted = append(deleted, target)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(deleted)
	return deleted, nil
}

// Start runs a cleanup cycle every interval until ctx is done. Cycles run
// one at a time.
func (c *Cleaner) Start(ctx context.Context, interval time.Duration) {
	logger.FromContext(ctx).Info("starting node cleanup", "node", c.nodeName, "interval", interval)

	_ = wait.PollUntilContextCancel(ctx, interval, false, func(ctx context.Context) (bool, error) {
		_, _ = c.RunCycle(ctx)
		return false, nil
	})
}
