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

package kube

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
)

const (
	// TaintUnschedulable is the taint key the node controller puts on cordoned nodes.
	TaintUnschedulable = corev1.TaintNodeUnschedulable
	// ConditionReady is the node condition type of a healthy node.
	ConditionReady = string(corev1.NodeReady)

	nodesPath = "/api/v1/nodes"
)

var cordonPatch = []byte(`{"spec":{"unschedulable":true}}`)

// Node is a snapshot of a cluster node.
type Node struct {
	Name string `json:"name"`
	// Taints holds the taint keys in API order.
	Taints []string `json:"taints"`
	// Conditions holds the types of the conditions whose status is True.
	Conditions []string `json:"conditions"`
}

// IsReady returns true if the node reports the Ready condition.
func (n Node) IsReady() bool {
	return lo.Contains(n.Conditions, ConditionReady)
}

// IsUnschedulableCandidate returns true if the node is not ready and
// carries the unschedulable taint.
func (n Node) IsUnschedulableCandidate() bool {
	return !n.IsReady() && lo.Contains(n.Taints, TaintUnschedulable)
}

// ScheduledNodeDelete records that NodeName should be deleted by ExecutionerNode.
type ScheduledNodeDelete struct {
	NodeName        string `json:"nodeName"`
	ExecutionerNode string `json:"executionerNode"`
}

// CordonResult is the outcome of a successful cordon call.
type CordonResult int

const (
	Cordoned CordonResult = iota
	AlreadyCordoned
)

func (r CordonResult) String() string {
	if r == AlreadyCordoned {
		return "AlreadyCordoned"
	}
	return "Cordoned"
}

// NodeFromObject converts a core node into a Node.
func NodeFromObject(node *corev1.Node) Node {
	conditions := lo.FilterMap(node.Status.Conditions, func(c corev1.NodeCondition, _ int) (string, bool) {
		return string(c.Type), c.Status == corev1.ConditionTrue
	})
	taints := lo.Map(node.Spec.Taints, func(t corev1.Taint, _ int) string {
		return t.Key
	})
	return Node{Name: node.Name, Taints: taints, Conditions: conditions}
}

// ListNodes returns all nodes of the cluster sorted by name.
func ListNodes(ctx context.Context, client kubernetes.Interface) ([]Node, error) {
	list, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapAPIError(http.MethodGet, nodesPath, err)
	}
	nodes := lo.Map(list.Items, func(item corev1.Node, _ int) Node {
		return NodeFromObject(&item)
	})
	slices.SortFunc(nodes, func(a, b Node) int {
		return strings.Compare(a.Name, b.Name)
	})
	return nodes, nil
}

// CordonNode marks the node unschedulable. A node whose patched state already
// carries the unschedulable taint was cordoned before and yields AlreadyCordoned.
func CordonNode(ctx context.Context, client kubernetes.Interface, name string) (CordonResult, error) {
	node, err := client.CoreV1().Nodes().Patch(ctx, name, types.StrategicMergePatchType, cordonPatch, metav1.PatchOptions{})
	if err != nil {
		return Cordoned, wrapAPIError(http.MethodPatch, nodePath(name), err)
	}
	if lo.ContainsBy(node.Spec.Taints, func(t corev1.Taint) bool { return t.Key == TaintUnschedulable }) {
		return AlreadyCordoned, nil
	}
	return Cordoned, nil
}

// DeleteNode deletes the node object.
func DeleteNode(ctx context.Context, client kubernetes.Interface, name string) error {
	if err := client.CoreV1().Nodes().Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return wrapAPIError(http.MethodDelete, nodePath(name), err)
	}
	return nil
}

func nodePath(name string) string {
	return fmt.Sprintf("%s/%s", nodesPath, name)
}
