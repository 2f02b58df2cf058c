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

package nodes

import (
	"context"
	"io"

	"github.com/norseto/kube-spot-operator/internal/cleanup"
	"github.com/norseto/kube-spot-operator/internal/operator"
	"github.com/norseto/kube-spot-operator/internal/options"
	"github.com/norseto/kube-spot-operator/pkg/kube"
	"github.com/norseto/kube-spot-operator/pkg/kube/client"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/yaml"
)

type snapshot struct {
	Nodes            []kube.Node                `json:"nodes"`
	ScheduledDeletes []kube.ScheduledNodeDelete `json:"scheduledDeletes"`
	Pods             map[string][]kube.Pod      `json:"pods,omitempty"`
}

// NewCommand returns a command that prints the fleet and the planned node
// deletions as YAML.
func NewCommand() *cobra.Command {
	var withPods bool
	opts := options.NewOptions()
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Show nodes and planned deletions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := opts.Complete(cmd.Flags()); err != nil {
				return err
			}
			clientset, err := client.NewClientset(opts.ClientOptions(ctx))
			if err != nil {
				logger.FromContext(ctx).Error(err, "failed to create client")
				return err
			}
			return printNodes(ctx, cmd.OutOrStdout(), clientset, opts, withPods)
		},
	}
	opts.BindFlags(cmd.Flags())
	cmd.Flags().BoolVar(&withPods, "pods", false, "also show the pods of every node")
	return cmd
}

func printNodes(ctx context.Context, w io.Writer, client kubernetes.Interface, opts *options.Options, withPods bool) error {
	clusterClient := operator.NewClusterClient(client, opts)

	nodes, scheduled, err := cleanup.New(clusterClient, opts.NodeName).Plan(ctx)
	if err != nil {
		logger.FromContext(ctx).Error(err, "failed to list nodes")
		return err
	}
	snap := snapshot{
		Nodes:            nodes,
		ScheduledDeletes: scheduled,
	}
	if withPods {
		snap.Pods = make(map[string][]kube.Pod, len(nodes))
		for _, n := range nodes {
			pods, err := clusterClient.ListNodePods(ctx, n.Name)
			if err != nil {
				return errors.Wrapf(err, "failed to list pods on node %s", n.Name)
			}
			snap.Pods[n.Name] = pods
		}
	}

	out, err := yaml.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "failed to encode nodes")
	}
	_, err = w.Write(out)
	return err
}
