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

package run

import (
	"context"

	"github.com/norseto/kube-spot-operator/internal/operator"
	"github.com/norseto/kube-spot-operator/internal/options"
	"github.com/norseto/kube-spot-operator/pkg/kube/client"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
)

// NewCommand returns a command that runs the operator until SIGTERM or SIGINT.
func NewCommand() *cobra.Command {
	return newCommand(options.NewOptions())
}

func newCommand(opts *options.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the operator",
		Long:  "Watch for spot termination notices, drain this node when one arrives, delete broken nodes and serve the HTTP API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			stop := context.AfterFunc(signals.SetupSignalHandler(), cancel)
			defer stop()
			return runOperator(ctx, cmd, opts)
		},
	}
	opts.BindFlags(cmd.Flags())
	return cmd
}

func runOperator(ctx context.Context, cmd *cobra.Command, opts *options.Options) error {
	log := logger.FromContext(ctx)

	if err := opts.Complete(cmd.Flags()); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return errors.Wrap(err, "invalid options")
	}

	clientset, err := client.NewClientset(opts.ClientOptions(ctx))
	if err != nil {
		log.Error(err, "failed to create client")
		return err
	}
	return operator.New(opts, clientset).Run(ctx)
}
