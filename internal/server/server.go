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

// Package server exposes the operator state over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/norseto/kube-spot-operator/internal/cluster"
	"github.com/norseto/kube-spot-operator/pkg/kube"
	"github.com/norseto/kube-spot-operator/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	serviceName        = "kube-spot-operator"
	serviceDescription = "Drains spot nodes scheduled for termination and deletes broken nodes."

	DefaultBindAddress = ":8080"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var supportedClaims = []string{"sub", "iss", "aud", "exp", "iat"}

// Planner returns the fleet snapshot together with the scheduled deletions.
type Planner interface {
	Plan(ctx context.Context) ([]kube.Node, []kube.ScheduledNodeDelete, error)
}

type Option func(*Server)

// WithExternalJWKSURI replaces jwks_uri in the served OpenID configuration.
func WithExternalJWKSURI(uri string) Option {
	return func(s *Server) {
		s.externalJWKSURI = uri
	}
}

// WithGatherer overrides the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// Server is the HTTP front end of the operator.
type Server struct {
	addr            string
	client          cluster.Client
	planner         Planner
	externalJWKSURI string
	gatherer        prometheus.Gatherer
	engine          *gin.Engine
}

// New returns a Server listening on addr once started.
func New(addr string, client cluster.Client, planner Planner, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		client:   client,
		planner:  planner,
		gatherer: crmetrics.Registry,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.setupEngine()
	return s
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/", s.index)
	engine.GET("/actuator/health", s.health)
	engine.GET(kube.JWKSPath, s.jwks)
	engine.GET(kube.OpenIDConfigurationPath, s.openIDConfiguration)
	engine.GET("/api/nodes", s.nodes)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	return engine
}

// Start serves until ctx is cancelled, then shuts the listener down
// gracefully. Request contexts carry the logger of ctx.
func (s *Server) Start(ctx context.Context) error {
	log := logger.FromContext(ctx, "addr", s.addr)
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           withLogger(s.engine, log),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func withLogger(next http.Handler, log logr.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), log)))
	})
}

func (s *Server) index(c *gin.Context) {
	routes := lo.Map(s.engine.Routes(), func(r gin.RouteInfo, _ int) string {
		return r.Path
	})
	c.JSON(http.StatusOK, gin.H{
		"service":     serviceName,
		"description": serviceDescription,
		"routes":      routes,
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) jwks(c *gin.Context) {
	body, err := s.client.FetchJWKS(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

func (s *Server) openIDConfiguration(c *gin.Context) {
	body, err := s.client.FetchOpenIDConfiguration(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(body, &doc); err != nil {
		s.fail(c, fmt.Errorf("failed to decode openid configuration: %w", err))
		return
	}
	if s.externalJWKSURI != "" {
		doc["jwks_uri"] = s.externalJWKSURI
	}
	doc["claims_supported"] = supportedClaims
	c.JSON(http.StatusOK, doc)
}

func (s *Server) nodes(c *gin.Context) {
	nodes, scheduled, err := s.planner.Plan(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if nodes == nil {
		nodes = []kube.Node{}
	}
	if scheduled == nil {
		scheduled = []kube.ScheduledNodeDelete{}
	}
	c.JSON(http.StatusOK, gin.H{
		"nodes":            nodes,
		"scheduledDeletes": scheduled,
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context()).Error(err, "request failed", "route", c.FullPath())
	c.JSON(http.StatusInternalServerError, gin.H{
		"status":  http.StatusInternalServerError,
		"route":   c.FullPath(),
		"error":   fmt.Sprintf("%T", err),
		"message": err.Error(),
	})
}
