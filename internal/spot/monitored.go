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

package spot

import (
	"context"
	"time"

	"github.com/norseto/kube-spot-operator/internal/metrics"
)

// Monitored decorates a MetadataClient with operation duration metrics.
type Monitored struct {
	delegate MetadataClient
}

var _ MetadataClient = &Monitored{}

// NewMonitored wraps delegate.
func NewMonitored(delegate MetadataClient) *Monitored {
	return &Monitored{delegate: delegate}
}

func (m *Monitored) InstanceAction(ctx context.Context) (action *InstanceAction, err error) {
	defer func(start time.Time) {
		metrics.ObserveDuration(metrics.MetadataClientDuration, "InstanceAction", start, err)
	}(time.Now())
	return m.delegate.InstanceAction(ctx)
}

func (m *Monitored) TargetLifecycleState(ctx context.Context) (state LifecycleState, err error) {
	defer func(start time.Time) {
		metrics.ObserveDuration(metrics.MetadataClientDuration, "TargetLifecycleState", start, err)
	}(time.Now())
	return m.delegate.TargetLifecycleState(ctx)
}
