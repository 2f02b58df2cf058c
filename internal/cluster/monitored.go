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

package cluster

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/norseto/kube-spot-operator/internal/metrics"
	"github.com/norseto/kube-spot-operator/pkg/kube"
)

// Monitored decorates a Client with operation duration and error metrics.
type Monitored struct {
	delegate Client
}

var _ Client = &Monitored{}

// NewMonitored wraps delegate.
func NewMonitored(delegate Client) *Monitored {
	return &Monitored{delegate: delegate}
}

func (m *Monitored) ListNodes(ctx context.Context) (nodes []kube.Node, err error) {
	defer observe("ListNodes", time.Now(), &err)
	return m.delegate.ListNodes(ctx)
}

func (m *Monitored) ListNodePods(ctx context.Context, nodeName string) (pods []kube.Pod, err error) {
	defer observe("ListNodePods", time.Now(), &err)
	return m.delegate.ListNodePods(ctx, nodeName)
}

func (m *Monitored) CordonNode(ctx context.Context, nodeName string) (result kube.CordonResult, err error) {
	defer observe("CordonNode", time.Now(), &err)
	return m.delegate.CordonNode(ctx, nodeName)
}

func (m *Monitored) EvictPod(ctx context.Context, name, namespace string) (err error) {
	defer observe("EvictPod", time.Now(), &err)
	return m.delegate.EvictPod(ctx, name, namespace)
}

func (m *Monitored) DeleteNode(ctx context.Context, nodeName string) (err error) {
	defer observe("DeleteNode", time.Now(), &err)
	return m.delegate.DeleteNode(ctx, nodeName)
}

func (m *Monitored) FetchJWKS(ctx context.Context) (body []byte, err error) {
	defer observe("FetchJWKS", time.Now(), &err)
	return m.delegate.FetchJWKS(ctx)
}

func (m *Monitored) FetchOpenIDConfiguration(ctx context.Context) (body []byte, err error) {
	defer observe("FetchOpenIDConfiguration", time.Now(), &err)
	return m.delegate.FetchOpenIDConfiguration(ctx)
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveDuration(metrics.ClusterClientDuration, operation, start, *err)
	if *err != nil {
		metrics.ClusterClientErrors.WithLabelValues(operation, errorCode(*err)).Inc()
	}
}

// errorCode returns the HTTP status of a ClusterAPIError, or "transport".
func errorCode(err error) string {
	var apiErr *kube.ClusterAPIError
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.StatusCode)
	}
	return "transport"
}
