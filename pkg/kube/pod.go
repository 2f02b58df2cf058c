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

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/client-go/kubernetes"
)

const (
	// OwnerDaemonSet is the owner kind of pods that are never evicted.
	OwnerDaemonSet = "DaemonSet"
	// OwnerUnknown is used for pods without owner references.
	OwnerUnknown = "unknown"

	podNodeNameField = "spec.nodeName"
)

// Pod is a snapshot of a pod running on a node.
type Pod struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace"`
	Phase       string `json:"phase"`
	OwnerKind   string `json:"ownerKind"`
	OwnerName   string `json:"ownerName"`
	HasEmptyDir bool   `json:"hasEmptyDir"`
}

// IsEvictionCandidate returns true unless the pod is managed by a DaemonSet.
func (p Pod) IsEvictionCandidate() bool {
	return p.OwnerKind != OwnerDaemonSet
}

func (p Pod) String() string {
	return p.Namespace + "/" + p.Name
}

// PodFromObject converts a core pod into a Pod. The owner is taken from the
// first owner reference.
func PodFromObject(pod *corev1.Pod) Pod {
	ret := Pod{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Phase:     string(pod.Status.Phase),
		OwnerKind: OwnerUnknown,
		OwnerName: OwnerUnknown,
		HasEmptyDir: lo.ContainsBy(pod.Spec.Volumes, func(v corev1.Volume) bool {
			return v.EmptyDir != nil
		}),
	}
	if len(pod.OwnerReferences) > 0 {
		ret.OwnerKind = pod.OwnerReferences[0].Kind
		ret.OwnerName = pod.OwnerReferences[0].Name
	}
	return ret
}

// FilterEvictionCandidates returns the pods that may be evicted.
func FilterEvictionCandidates(pods []Pod) []Pod {
	return lo.Filter(pods, func(p Pod, _ int) bool {
		return p.IsEvictionCandidate()
	})
}

// ListNodePods returns the pods of all namespaces scheduled on the node.
func ListNodePods(ctx context.Context, client kubernetes.Interface, nodeName string) ([]Pod, error) {
	selector := fields.OneTermEqualSelector(podNodeNameField, nodeName).String()
	list, err := client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{FieldSelector: selector})
	if err != nil {
		return nil, wrapAPIError(http.MethodGet, "/api/v1/pods?fieldSelector="+selector, err)
	}
	return lo.FilterMap(list.Items, func(item corev1.Pod, _ int) (Pod, bool) {
		return PodFromObject(&item), item.Spec.NodeName == nodeName
	}), nil
}

// EvictPod asks the API server to evict the pod through the policy/v1 Eviction API.
func EvictPod(ctx context.Context, client kubernetes.Interface, name, namespace string) error {
	eviction := &policyv1.Eviction{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
	}
	if err := client.PolicyV1().Evictions(namespace).Evict(ctx, eviction); err != nil {
		path := fmt.Sprintf("/api/v1/namespaces/%s/pods/%s/eviction", namespace, name)
		return wrapAPIError(http.MethodPost, path, err)
	}
	return nil
}
