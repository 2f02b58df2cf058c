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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/norseto/kube-spot-operator/internal/cluster"
	"github.com/norseto/kube-spot-operator/pkg/kube"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	cluster.Client
	jwks    []byte
	oidc    []byte
	oidcErr error
}

func (s *stubClient) FetchJWKS(context.Context) ([]byte, error) {
	return s.jwks, nil
}

func (s *stubClient) FetchOpenIDConfiguration(context.Context) ([]byte, error) {
	return s.oidc, s.oidcErr
}

type stubPlanner struct {
	nodes     []kube.Node
	scheduled []kube.ScheduledNodeDelete
	err       error
}

func (s *stubPlanner) Plan(context.Context) ([]kube.Node, []kube.ScheduledNodeDelete, error) {
	return s.nodes, s.scheduled, s.err
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_Index(t *testing.T) {
	s := New(":0", &stubClient{}, &stubPlanner{})

	rec := get(t, s, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "kube-spot-operator", body["service"])
	assert.NotEmpty(t, body["description"])
	assert.ElementsMatch(t, []interface{}{
		"/", "/actuator/health", kube.JWKSPath, kube.OpenIDConfigurationPath, "/api/nodes", "/metrics",
	}, body["routes"])
}

func TestServer_Health(t *testing.T) {
	s := New(":0", &stubClient{}, &stubPlanner{})

	rec := get(t, s, "/actuator/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestServer_JWKS(t *testing.T) {
	jwks := `{"keys":[{"kid":"abc","kty":"RSA"}]}`
	s := New(":0", &stubClient{jwks: []byte(jwks)}, &stubPlanner{})

	rec := get(t, s, kube.JWKSPath)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, jwks, rec.Body.String())
}

func TestServer_OpenIDConfiguration(t *testing.T) {
	upstream := `{"issuer":"https://kubernetes.default.svc","jwks_uri":"https://10.0.0.1:443/openid/v1/jwks","claims_supported":["sub"]}`

	t.Run("ExternalURI", func(t *testing.T) {
		s := New(":0", &stubClient{oidc: []byte(upstream)}, &stubPlanner{},
			WithExternalJWKSURI("https://example.com/openid/v1/jwks"))

		rec := get(t, s, kube.OpenIDConfigurationPath)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"issuer":"https://kubernetes.default.svc",
			"jwks_uri":"https://example.com/openid/v1/jwks",
			"claims_supported":["sub","iss","aud","exp","iat"]
		}`, rec.Body.String())
	})

	t.Run("NoExternalURI", func(t *testing.T) {
		s := New(":0", &stubClient{oidc: []byte(upstream)}, &stubPlanner{})

		body := decode(t, get(t, s, kube.OpenIDConfigurationPath))

		assert.Equal(t, "https://10.0.0.1:443/openid/v1/jwks", body["jwks_uri"])
		assert.Equal(t, []interface{}{"sub", "iss", "aud", "exp", "iat"}, body["claims_supported"])
	})

	t.Run("UpstreamError", func(t *testing.T) {
		apiErr := &kube.ClusterAPIError{Method: "GET", Path: kube.OpenIDConfigurationPath, StatusCode: 503}
		s := New(":0", &stubClient{oidcErr: apiErr}, &stubPlanner{})

		rec := get(t, s, kube.OpenIDConfigurationPath)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(500), body["status"])
		assert.Equal(t, kube.OpenIDConfigurationPath, body["route"])
		assert.Equal(t, "*kube.ClusterAPIError", body["error"])
		assert.Equal(t, apiErr.Error(), body["message"])
	})

	t.Run("InvalidDocument", func(t *testing.T) {
		s := New(":0", &stubClient{oidc: []byte("<html>")}, &stubPlanner{})

		rec := get(t, s, kube.OpenIDConfigurationPath)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestServer_Nodes(t *testing.T) {
	t.Run("Plan", func(t *testing.T) {
		planner := &stubPlanner{
			nodes: []kube.Node{
				{Name: "a", Taints: []string{}, Conditions: []string{kube.ConditionReady}},
				{Name: "b", Taints: []string{kube.TaintUnschedulable}, Conditions: []string{}},
			},
			scheduled: []kube.ScheduledNodeDelete{{NodeName: "b", ExecutionerNode: "a"}},
		}
		s := New(":0", &stubClient{}, planner)

		rec := get(t, s, "/api/nodes")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"nodes":[
				{"name":"a","taints":[],"conditions":["Ready"]},
				{"name":"b","taints":["node.kubernetes.io/unschedulable"],"conditions":[]}
			],
			"scheduledDeletes":[{"nodeName":"b","executionerNode":"a"}]
		}`, rec.Body.String())
	})

	t.Run("Empty", func(t *testing.T) {
		s := New(":0", &stubClient{}, &stubPlanner{})

		rec := get(t, s, "/api/nodes")

		assert.JSONEq(t, `{"nodes":[],"scheduledDeletes":[]}`, rec.Body.String())
	})

	t.Run("Error", func(t *testing.T) {
		s := New(":0", &stubClient{}, &stubPlanner{err: errors.New("connection refused")})

		rec := get(t, s, "/api/nodes")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "/api/nodes", body["route"])
		assert.Equal(t, "connection refused", body["message"])
	})
}

func TestServer_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_requests_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Add(3)
	s := New(":0", &stubClient{}, &stubPlanner{}, WithGatherer(registry))

	rec := get(t, s, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_requests_total 3")
}

func TestServer_Start(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	s := New(addr, &stubClient{}, &stubPlanner{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/actuator/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
