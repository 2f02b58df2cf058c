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

package kube

import (
	"context"
	"net/http"

	"k8s.io/client-go/kubernetes"
)

const (
	// JWKSPath serves the service account token signing keys.
	JWKSPath = "/openid/v1/jwks"
	// OpenIDConfigurationPath serves the service account issuer discovery document.
	OpenIDConfigurationPath = "/.well-known/openid-configuration"
)

// FetchJWKS returns the raw JWKS document of the API server.
func FetchJWKS(ctx context.Context, client kubernetes.Interface) ([]byte, error) {
	return getRaw(ctx, client, JWKSPath)
}

// FetchOpenIDConfiguration returns the raw OpenID discovery document of the API server.
func FetchOpenIDConfiguration(ctx context.Context, client kubernetes.Interface) ([]byte, error) {
	return getRaw(ctx, client, OpenIDConfigurationPath)
}

func getRaw(ctx context.Context, client kubernetes.Interface, path string) ([]byte, error) {
	body, err := client.CoreV1().RESTClient().Get().AbsPath(path).DoRaw(ctx)
	if err != nil {
		return nil, wrapAPIError(http.MethodGet, path, err)
	}
	return body, nil
}
