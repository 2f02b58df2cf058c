package main

import (
	"context"
	"os"

	"github.com/norseto/kube-spot-operator/internal/cmd/cleanup"
	"github.com/norseto/kube-spot-operator/internal/cmd/drain"
	"github.com/norseto/kube-spot-operator/internal/cmd/nodes"
	"github.com/norseto/kube-spot-operator/internal/cmd/run"
	"github.com/norseto/kube-spot-operator/internal/cmd/version"
	"github.com/norseto/kube-spot-operator/pkg/kube/client"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"github.com/spf13/cobra"
)

// NewRootCmd returns the spot-operator command with all subcommands.
func NewRootCmd() *cobra.Command {
	clientOpts := &client.Options{}
	rootCmd := &cobra.Command{
		Use:   "spot-operator",
		Short: "Kubernetes spot node operator",
		Long:  `Kubernetes operator that drains spot nodes before termination and deletes broken nodes`,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Usage()
		},
	}
	clientOpts.BindPFlags(rootCmd.PersistentFlags())
	rootCmd.SetContext(client.WithContext(context.Background(), clientOpts))
	rootCmd.AddCommand(
		run.NewCommand(),
		drain.NewCommand(),
		cleanup.NewCommand(),
		nodes.NewCommand(),
		version.NewCommand(),
	)
	logger.InitCmdLogger(rootCmd)
	return rootCmd
}

func main() {
	ctx := logger.WithContext(context.Background(), logger.InitLogger())
	log := logger.FromContext(ctx, "cmd", "spot-operator")

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(client.WithContext(ctx, client.FromContext(rootCmd.Context()))); err != nil {
		log.Error(err, "Failed to execute command")
		os.Exit(1)
	}
}
