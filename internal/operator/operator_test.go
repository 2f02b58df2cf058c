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

package operator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/norseto/kube-spot-operator/internal/options"
	"github.com/norseto/kube-spot-operator/internal/spot"
	"github.com/norseto/kube-spot-operator/pkg/kube"
	"github.com/norseto/kube-spot-operator/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

type terminatingMetadata struct{}

func (terminatingMetadata) InstanceAction(context.Context) (*spot.InstanceAction, error) {
	return &spot.InstanceAction{Action: "terminate", Time: time.Now().Add(2 * time.Minute)}, nil
}

func (terminatingMetadata) TargetLifecycleState(context.Context) (spot.LifecycleState, error) {
	return spot.LifecycleInService, nil
}

func readyNode(name string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
			{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
		}},
	}
}

func brokenNode(name string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec: corev1.NodeSpec{Taints: []corev1.Taint{
			{Key: kube.TaintUnschedulable, Effect: corev1.TaintEffectNoSchedule},
		}},
		Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
			{Type: corev1.NodeReady, Status: corev1.ConditionUnknown},
		}},
	}
}

func pod(name, nodeName, ownerKind string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace:       "default",
			Name:            name,
			OwnerReferences: []metav1.OwnerReference{{Kind: ownerKind, Name: name + "-owner"}},
		},
		Spec: corev1.PodSpec{NodeName: nodeName},
	}
}

func testOptions(t *testing.T) *options.Options {
	t.Helper()
	opts := options.NewOptions()
	opts.NodeName = "node-a"
	opts.BindAddress = "127.0.0.1:0"
	opts.CleanupInterval = 20 * time.Millisecond
	opts.EC2PollInterval = 10 * time.Millisecond
	opts.EvictionDelays = retry.Delays{time.Millisecond}
	opts.ConfirmationDelays = retry.Delays{5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond}
	return opts
}

func evictAndDelete(client *fake.Clientset) k8stesting.ReactionFunc {
	pods := corev1.SchemeGroupVersion.WithResource("pods")
	return func(action k8stesting.Action) (bool, runtime.Object, error) {
		if action.GetSubresource() != "eviction" {
			return false, nil, nil
		}
		eviction := action.(k8stesting.CreateAction).GetObject().(*policyv1.Eviction)
		_ = client.Tracker().Delete(pods, eviction.Namespace, eviction.Name)
		return true, nil, nil
	}
}

func TestOperator_Run(t *testing.T) {
	client := fake.NewSimpleClientset(
		brokenNode("node-0"),
		readyNode("node-a"),
		readyNode("node-b"),
		pod("web", "node-a", "ReplicaSet"),
		pod("agent", "node-a", kube.OwnerDaemonSet),
		pod("db", "node-b", "StatefulSet"),
	)
	client.PrependReactor("create", "pods", evictAndDelete(client))

	op := New(testOptions(t), client, WithMetadataClient(terminatingMetadata{}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- op.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		_, err := client.CoreV1().Nodes().Get(context.Background(), "node-0", metav1.GetOptions{})
		return apierrors.IsNotFound(err)
	}, 5*time.Second, 10*time.Millisecond, "broken node was not deleted")

	assert.Eventually(t, func() bool {
		n, err := client.CoreV1().Nodes().Get(context.Background(), "node-a", metav1.GetOptions{})
		if err != nil || !n.Spec.Unschedulable {
			return false
		}
		_, err = client.CoreV1().Pods("default").Get(context.Background(), "web", metav1.GetOptions{})
		return apierrors.IsNotFound(err)
	}, 5*time.Second, 10*time.Millisecond, "own node was not drained")

	_, err := client.CoreV1().Pods("default").Get(context.Background(), "agent", metav1.GetOptions{})
	assert.NoError(t, err, "DaemonSet pod must stay")
	_, err = client.CoreV1().Pods("default").Get(context.Background(), "db", metav1.GetOptions{})
	assert.NoError(t, err, "pods on other nodes must stay")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("operator did not stop")
	}
}

func TestOperator_RunDisabledComponents(t *testing.T) {
	client := fake.NewSimpleClientset(brokenNode("node-0"), readyNode("node-a"))
	opts := testOptions(t)
	opts.CleanupEnabled = false
	opts.EC2Enabled = false

	op := New(opts, client)
	require.Nil(t, op.metadata)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, op.Run(ctx))
	_, err := client.CoreV1().Nodes().Get(context.Background(), "node-0", metav1.GetOptions{})
	assert.NoError(t, err, "cleanup is disabled")
}

func TestOperator_RunBindFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	opts := testOptions(t)
	opts.EC2Enabled = false
	opts.BindAddress = listener.Addr().String()
	op := New(opts, fake.NewSimpleClientset())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.ErrorContains(t, op.Run(ctx), "http server stopped")
}

func TestNew_MetadataClientFromOptions(t *testing.T) {
	op := New(testOptions(t), fake.NewSimpleClientset())

	_, ok := op.metadata.(*spot.Monitored)
	assert.True(t, ok)
}

func TestHandleDrainRequests_StopsOnCancel(t *testing.T) {
	client := fake.NewSimpleClientset()
	opts := testOptions(t)
	drainer := NewDrainer(NewClusterClient(client, opts), opts)
	triggers := make(chan spot.DrainRequest)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		handleDrainRequests(ctx, drainer, triggers)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop")
	}
}

func TestHandleDrainRequest_Incomplete(t *testing.T) {
	client := fake.NewSimpleClientset(readyNode("node-a"), pod("web", "node-a", "ReplicaSet"))
	client.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return action.GetSubresource() == "eviction", nil, nil
	})
	opts := testOptions(t)
	drainer := NewDrainer(NewClusterClient(client, opts), opts)

	handleDrainRequest(context.Background(), drainer, spot.DrainRequest{NodeName: "node-a", Reason: "terminate"})

	_, err := client.CoreV1().Pods("default").Get(context.Background(), "web", metav1.GetOptions{})
	assert.NoError(t, err)
	n, err := client.CoreV1().Nodes().Get(context.Background(), "node-a", metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, n.Spec.Unschedulable)
}
