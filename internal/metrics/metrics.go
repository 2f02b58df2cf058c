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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	Namespace = "kube_spot_operator"

	clusterClientSubsystem = "cluster_client"
	metadataSubsystem      = "ec2_metadata"
	drainSubsystem         = "drain"
	cleanupSubsystem       = "cleanup"

	OperationLabel = "operation"
	StatusLabel    = "status"
	CodeLabel      = "code"
	ResultLabel    = "result"
	ReasonLabel    = "reason"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	ClusterClientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: clusterClientSubsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of Kubernetes API operations in seconds. Labeled by operation and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{OperationLabel, StatusLabel},
	)
	ClusterClientErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: clusterClientSubsystem,
			Name:      "errors_total",
			Help:      "Number of failed Kubernetes API operations. Labeled by operation and HTTP status code.",
		},
		[]string{OperationLabel, CodeLabel},
	)
	MetadataClientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: metadataSubsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of EC2 instance metadata operations in seconds. Labeled by operation and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{OperationLabel, StatusLabel},
	)
	TerminationSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: metadataSubsystem,
			Name:      "termination_signals_total",
			Help:      "Number of termination signals raised. Labeled by reason.",
		},
		[]string{ReasonLabel},
	)
	DrainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: drainSubsystem,
			Name:      "nodes_total",
			Help:      "Number of node drains. Labeled by result.",
		},
		[]string{ResultLabel},
	)
	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: drainSubsystem,
			Name:      "evictions_total",
			Help:      "Number of pod evictions. Labeled by result.",
		},
		[]string{ResultLabel},
	)
	NodeDeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: cleanupSubsystem,
			Name:      "node_deletions_total",
			Help:      "Number of node deletions issued by the cleanup cycle. Labeled by result.",
		},
		[]string{ResultLabel},
	)
	CleanupCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: cleanupSubsystem,
			Name:      "cycles_total",
			Help:      "Number of cleanup cycles. Labeled by result.",
		},
		[]string{ResultLabel},
	)
)

func init() {
	crmetrics.Registry.MustRegister(ClusterClientDuration, ClusterClientErrors, MetadataClientDuration,
		TerminationSignals, DrainsTotal, EvictionsTotal, NodeDeletionsTotal, CleanupCyclesTotal)
}

// Status returns the status label value for err.
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// ObserveDuration records the time elapsed since start for operation.
func ObserveDuration(h *prometheus.HistogramVec, operation string, start time.Time, err error) {
	h.With(prometheus.Labels{
		OperationLabel: operation,
		StatusLabel:    Status(err),
	}).Observe(time.Since(start).Seconds())
}
