package version

import (
	"bytes"
	"testing"

	spotoperator "github.com/norseto/kube-spot-operator"
	"github.com/stretchr/testify/assert"
)

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()
	assert.Equal(t, "version", cmd.Use)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	assert.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "version: "+spotoperator.RELEASE_VERSION)
	assert.Contains(t, out, "GitVersion:")
}
