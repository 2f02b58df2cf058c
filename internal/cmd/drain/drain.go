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

	"github.com/norseto/kube-spot-operator/internal/operator"
	"github.com/norseto/kube-spot-operator/internal/options"
	"github.com/norseto/kube-spot-operator/pkg/kube/client"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
)

// NewCommand returns a command that drains a node once.
// The node defaults to the node the operator runs on.
func NewCommand() *cobra.Command {
	opts := options.NewOptions()
	cmd := &cobra.Command{
		Use:   "drain [node]",
		Short: "Cordon a node and evict its pods",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := prepare(cmd, opts, args); err != nil {
				return err
			}
			clientset, err := client.NewClientset(opts.ClientOptions(ctx))
			if err != nil {
				logger.FromContext(ctx).Error(err, "failed to create client")
				return err
			}
			return drainNode(ctx, clientset, opts)
		},
	}
	opts.BindFlags(cmd.Flags())
	return cmd
}

func prepare(cmd *cobra.Command, opts *options.Options, args []string) error {
	if err := opts.Complete(cmd.Flags()); err != nil {
		return err
	}
	if len(args) > 0 {
		opts.NodeName = args[0]
	}
	if err := opts.Validate(); err != nil {
		return errors.Wrap(err, "invalid options")
	}
	return nil
}

func drainNode(ctx context.Context, client kubernetes.Interface, opts *options.Options) error {
	log := logger.FromContext(ctx, "target", opts.NodeName)

	drainer := operator.NewDrainer(operator.NewClusterClient(client, opts), opts)
	if err := drainer.Drain(ctx, opts.NodeName); err != nil {
		log.Error(err, "failed to drain node")
		return err
	}
	log.Info("node drained")
	return nil
}
