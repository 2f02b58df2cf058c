package logger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

func TestInitLogger(t *testing.T) {
	logger := InitLogger()
	assert.NotNil(t, logger.GetSink())
}

func TestDefaultOptions(t *testing.T) {
	opts := defaultOptions()

	assert.False(t, opts.Development)
	assert.NotNil(t, opts.TimeEncoder)
	assert.Nil(t, opts.Level)

	enc := &arrayEncoder{}
	opts.TimeEncoder(time.Unix(0, 0).UTC(), enc)
	assert.Equal(t, []string{"1970-01-01T00:00:00.000Z"}, enc.values)
}

// arrayEncoder records appended strings.
type arrayEncoder struct {
	zapcore.PrimitiveArrayEncoder
	values []string
}

func (a *arrayEncoder) AppendString(s string) {
	a.values = append(a.values, s)
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	logger := zap.New()

	ctx = WithContext(ctx, logger)
	loggerFromCtx := FromContext(ctx)
	assert.NotNil(t, loggerFromCtx.GetSink())

	loggerWithKV := FromContext(ctx, "key", "value")
	assert.NotNil(t, loggerWithKV.GetSink())
}

func TestWithContext(t *testing.T) {
	ctx := context.Background()
	logger := zap.New()

	newCtx := WithContext(ctx, logger)
	assert.NotNil(t, newCtx)

	loggerFromCtx := FromContext(newCtx)
	assert.NotNil(t, loggerFromCtx.GetSink())
}

func TestInitCmdLogger(t *testing.T) {
	rootCmd := &cobra.Command{
		Use: "test",
		Run: func(cmd *cobra.Command, args []string) {},
	}

	InitCmdLogger(rootCmd)

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("zap-devel"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("zap-encoder"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("zap-log-level"))

	assert.NotNil(t, rootCmd.PersistentPreRun)
	assert.NotNil(t, rootCmd.PersistentPostRun)

	rootCmd.SetContext(context.Background())
	rootCmd.PersistentPreRun(rootCmd, []string{})
	logger := FromContext(rootCmd.Context())
	assert.NotNil(t, logger.GetSink())

	rootCmd.PersistentPostRun(rootCmd, []string{})
}

func TestInitCmdLogger_Execute(t *testing.T) {
	var got context.Context
	rootCmd := &cobra.Command{Use: "root"}
	subCmd := &cobra.Command{
		Use: "sub",
		Run: func(cmd *cobra.Command, args []string) {
			got = cmd.Context()
		},
	}
	rootCmd.AddCommand(subCmd)
	InitCmdLogger(rootCmd)

	rootCmd.SetArgs([]string{"sub", "--zap-log-level=debug"})
	err := rootCmd.ExecuteContext(context.Background())

	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.True(t, FromContext(got).V(1).Enabled())
}

func TestMakeCmdValue(t *testing.T) {
	rootCmd := &cobra.Command{Use: "root"}
	subCmd := &cobra.Command{Use: "sub [node]"}
	subSubCmd := &cobra.Command{Use: "subsub"}

	rootCmd.AddCommand(subCmd)
	subCmd.AddCommand(subSubCmd)

	tests := []struct {
		name     string
		cmd      *cobra.Command
		expected string
	}{
		{name: "root command", cmd: rootCmd, expected: "root"},
		{name: "sub command", cmd: subCmd, expected: "root.sub"},
		{name: "subsub command", cmd: subSubCmd, expected: "root.sub.subsub"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, makeCmdValue(tt.cmd))
		})
	}
}

func TestMakeCommandLine(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()
	os.Args = []string{"test-binary"}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("test-flag", "default", "test flag")
	fs.String("untouched", "default", "not set")
	_ = fs.Set("test-flag", "value")

	result := makeCommandLine(fs)

	assert.Contains(t, result, "test-binary")
	assert.Contains(t, result, "--test-flag=value")
	assert.NotContains(t, result, "untouched")
}

func TestBindPFlags(t *testing.T) {
	opts := &zap.Options{
		Development: false,
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	bindPFlags(opts, fs)

	flags := []string{
		"zap-devel",
		"zap-encoder",
		"zap-log-level",
		"zap-stacktrace-level",
		"zap-time-encoding",
	}
	for _, name := range flags {
		f := fs.Lookup(name)
		if assert.NotNil(t, f, name) {
			assert.True(t, f.Hidden, "flag %s should be hidden", name)
		}
	}

	assert.NoError(t, fs.Parse([]string{"--zap-devel"}))
	assert.True(t, opts.Development)
}

func TestSetupLogger(t *testing.T) {
	rootCmd := &cobra.Command{Use: "root"}
	subCmd := &cobra.Command{Use: "sub"}
	rootCmd.AddCommand(subCmd)

	opts := &zap.Options{
		Development: false,
	}

	rootCmd.SetContext(context.Background())
	setupLogger(opts, rootCmd)
	assert.NotNil(t, rootCmd.Context())

	setupLogger(opts, subCmd)
	assert.NotNil(t, subCmd.Context())
}
