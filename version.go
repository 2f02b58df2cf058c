package spotoperator

// RELEASE_VERSION is the released version of the operator.
const RELEASE_VERSION = "v0.3.0"

// GitVersion is set with -ldflags "-X github.com/norseto/kube-spot-operator.GitVersion=..."
var GitVersion = ""
