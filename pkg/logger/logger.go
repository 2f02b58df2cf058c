package logger

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	clog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// InitLogger returns a production logger with default options.
// It is used before the command line has been parsed.
func InitLogger() logr.Logger {
	opts := defaultOptions()
	return zap.New(zap.UseFlagOptions(opts))
}

// InitCmdLogger binds the zap logger options to the persistent flags of cmd
// and installs hooks that put a configured logger into the context of the
// executed (sub)command.
func InitCmdLogger(cmd *cobra.Command) {
	opts := defaultOptions()
	bindPFlags(opts, cmd.PersistentFlags())

	cmd.PersistentPreRun = func(c *cobra.Command, _ []string) {
		setupLogger(opts, c)
	}
	cmd.PersistentPostRun = func(c *cobra.Command, _ []string) {
		FromContext(c.Context()).V(1).Info("command finished")
	}
}

func defaultOptions() *zap.Options {
	return &zap.Options{
		Development: false,
		TimeEncoder: zapcore.ISO8601TimeEncoder,
	}
}

// FromContext returns a logr.Logger instance based on the provided context and key-value pairs.
func FromContext(ctx context.Context, keyAndValues ...interface{}) logr.Logger {
	return clog.FromContext(ctx, keyAndValues...)
}

// WithContext adds a logr.Logger to the provided context.
func WithContext(ctx context.Context, log logr.Logger) context.Context {
	return clog.IntoContext(ctx, log)
}

// setupLogger builds the logger from opts and stores it in the command context.
func setupLogger(opts *zap.Options, cmd *cobra.Command) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := zap.New(zap.UseFlagOptions(opts)).WithValues("cmd", makeCmdValue(cmd))
	cmd.SetContext(WithContext(ctx, log))
	log.V(1).Info("starting command", "commandLine", makeCommandLine(cmd.Flags()))
}

// makeCmdValue returns the dotted path of cmd from the root command.
func makeCmdValue(cmd *cobra.Command) string {
	var names []string
	for c := cmd; c != nil; c = c.Parent() {
		names = append([]string{c.Name()}, names...)
	}
	return strings.Join(names, ".")
}

// makeCommandLine renders the program name followed by the flags that were set.
func makeCommandLine(fs *pflag.FlagSet) string {
	args := []string{os.Args[0]}
	fs.Visit(func(f *pflag.Flag) {
		args = append(args, "--"+f.Name+"="+f.Value.String())
	})
	return strings.Join(args, " ")
}

// bindPFlags registers the zap options as hidden flags of fs.
func bindPFlags(opts *zap.Options, fs *pflag.FlagSet) {
	gofs := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.BindFlags(gofs)
	gofs.VisitAll(func(f *flag.Flag) {
		fs.AddGoFlag(f)
		_ = fs.MarkHidden(f.Name)
	})
}
