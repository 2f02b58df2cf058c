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

	nodecleanup "github.com/norseto/kube-spot-operator/internal/cleanup"
	"github.com/norseto/kube-spot-operator/internal/operator"
	"github.com/norseto/kube-spot-operator/internal/options"
	"github.com/norseto/kube-spot-operator/pkg/kube/client"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
)

// NewCommand returns a command that runs one cleanup cycle as the own node.
func NewCommand() *cobra.Command {
	opts := options.NewOptions()
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete broken nodes assigned to this node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := opts.Complete(cmd.Flags()); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return errors.Wrap(err, "invalid options")
			}
			clientset, err := client.NewClientset(opts.ClientOptions(ctx))
			if err != nil {
				logger.FromContext(ctx).Error(err, "failed to create client")
				return err
			}
			return cleanupNodes(ctx, clientset, opts)
		},
	}
	opts.BindFlags(cmd.Flags())
	return cmd
}

func cleanupNodes(ctx context.Context, client kubernetes.Interface, opts *options.Options) error {
	cleaner := nodecleanup.New(operator.NewClusterClient(client, opts), opts.NodeName)
	deleted, err := cleaner.RunCycle(ctx)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("nodes delete result", "deleted", len(deleted), "nodes", deleted)
	return nil
}
