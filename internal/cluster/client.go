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

// Package cluster provides the Kubernetes API operations used to drain and
// clean up nodes.
package cluster

import (
	"context"
	"time"

	"github.com/norseto/kube-spot-operator/pkg/kube"
	"k8s.io/client-go/kubernetes"
)

// Client is the set of Kubernetes API operations the operator depends on.
type Client interface {
	// ListNodes returns the fleet sorted by node name.
	ListNodes(ctx context.Context) ([]kube.Node, error)
	ListNodePods(ctx context.Context, nodeName string) ([]kube.Pod, error)
	CordonNode(ctx context.Context, nodeName string) (kube.CordonResult, error)
	EvictPod(ctx context.Context, name, namespace string) error
	DeleteNode(ctx context.Context, nodeName string) error
	FetchJWKS(ctx context.Context) ([]byte, error)
	FetchOpenIDConfiguration(ctx context.Context) ([]byte, error)
}

// Clientset implements Client with a kubernetes.Interface. Every call is
// bounded by the configured timeout.
type Clientset struct {
	client  kubernetes.Interface
	timeout time.Duration
}

var _ Client = &Clientset{}

// New returns a Clientset. A timeout of zero leaves calls bounded only by
// the caller's context.
func New(client kubernetes.Interface, timeout time.Duration) *Clientset {
	return &Clientset{client: client, timeout: timeout}
}

func (c *Clientset) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Clientset) ListNodes(ctx context.Context) ([]kube.Node, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return kube.ListNodes(ctx, c.client)
}

func (c *Clientset) ListNodePods(ctx context.Context, nodeName string) ([]kube.Pod, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return kube.ListNodePods(ctx, c.client, nodeName)
}

func (c *Clientset) CordonNode(ctx context.Context, nodeName string) (kube.CordonResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return kube.CordonNode(ctx, c.client, nodeName)
}

func (c *Clientset) EvictPod(ctx context.Context, name, namespace string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return kube.EvictPod(ctx, c.client, name, namespace)
}

func (c *Clientset) DeleteNode(ctx context.Context, nodeName string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return kube.DeleteNode(ctx, c.client, nodeName)
}

func (c *Clientset) FetchJWKS(ctx context.Context) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return kube.FetchJWKS(ctx, c.client)
}

func (c *Clientset) FetchOpenIDConfiguration(ctx context.Context) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return kube.FetchOpenIDConfiguration(ctx, c.client)
}
