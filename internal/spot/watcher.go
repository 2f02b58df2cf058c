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

// Package spot watches the EC2 instance metadata for spot interruptions and
// Auto Scaling termination.
package spot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/norseto/kube-spot-operator/internal/metrics"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultInterval is the period between metadata polls.
const DefaultInterval = 30 * time.Second

// DrainRequest asks for NodeName to be drained.
type DrainRequest struct {
	NodeName string
	Reason   string
}

// Watcher polls a MetadataClient and emits a single DrainRequest for its
// own node once termination is announced.
type Watcher struct {
	client   MetadataClient
	nodeName string
	interval time.Duration
	triggers chan DrainRequest
	fired    atomic.Bool
}

// NewWatcher returns a Watcher for nodeName.
func NewWatcher(client MetadataClient, nodeName string, interval time.Duration) *Watcher {
	return &Watcher{
		client:   client,
		nodeName: nodeName,
		interval: interval,
		triggers: make(chan DrainRequest, 1),
	}
}

// Triggers returns the channel the drain request is sent on.
func (w *Watcher) Triggers() <-chan DrainRequest {
	return w.triggers
}

// Fired reports whether the drain request has been emitted.
func (w *Watcher) Fired() bool {
	return w.fired.Load()
}

// Poll checks the metadata once and returns true if this call emitted the
// drain request. After the first emission it never emits again.
func (w *Watcher) Poll(ctx context.Context) bool {
	if w.fired.Load() {
		return false
	}
	reason := w.terminationReason(ctx)
	if reason == "" || !w.fired.CompareAndSwap(false, true) {
		return false
	}

	logger.FromContext(ctx).Info("termination scheduled, requesting drain", "node", w.nodeName, "reason", reason)
	metrics.TerminationSignals.WithLabelValues(reason).Inc()
	w.triggers <- DrainRequest{NodeName: w.nodeName, Reason: reason}
	return true
}

func (w *Watcher) terminationReason(ctx context.Context) string {
	log := logger.FromContext(ctx)

	action, err := w.client.InstanceAction(ctx)
	if err != nil {
		log.Error(err, "failed to get spot instance action")
	} else if action != nil {
		log.V(1).Info("spot instance action", "action", action.Action, "time", action.Time)
		if action.Action == "terminate" || action.Action == "stop" {
			return action.Action
		}
	}

	state, err := w.client.TargetLifecycleState(ctx)
	if err != nil {
		log.Error(err, "failed to get target lifecycle state")
		return ""
	}
	if state.IsTerminating() {
		return string(state)
	}
	return ""
}

// Start polls every interval until ctx is done or the drain request was emitted.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.FromContext(ctx).Info("watching instance metadata", "node", w.nodeName, "interval", w.interval)
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if w.Poll(ctx) {
			cancel()
		}
	}, w.interval)
}
