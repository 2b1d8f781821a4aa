package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transit-planner/internal/logging"
)

type Collector struct {
	reg *prometheus.Registry

	GraphBuilds        *prometheus.CounterVec // result label: built|unchanged|error
	GraphBuildDuration prometheus.Histogram
	GraphNodes         prometheus.Gauge
	GraphBusEdges      prometheus.Gauge
	GraphWalkEdges     prometheus.Gauge
	GraphLastBuilt     prometheus.Gauge // unix seconds

	PlanResults  *prometheus.CounterVec // result label: routed|walk|no_path|error
	PlanDuration prometheus.Histogram
	ETAResults   *prometheus.CounterVec // status label

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	RefreshInterval prometheus.Gauge // seconds
	SearchTimeout   prometheus.Gauge // seconds
}

func NewCollector(refreshInterval, searchTimeout time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		GraphBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_graph_builds_total",
			Help: "Graph build attempts by result.",
		}, []string{"result"}),
		GraphBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_graph_build_duration_seconds",
			Help:    "Time to load the network and build the graph.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_nodes",
			Help: "Stops in the published graph.",
		}),
		GraphBusEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_bus_edges",
			Help: "Bus edges in the published graph.",
		}),
		GraphWalkEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_walk_edges",
			Help: "Walk edges in the published graph.",
		}),
		GraphLastBuilt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_last_built_timestamp_seconds",
			Help: "Unix time of the last published graph.",
		}),
		PlanResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_plans_total",
			Help: "Trip plan requests by result.",
		}, []string{"result"}),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_plan_duration_seconds",
			Help:    "Duration of path searches.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		ETAResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_eta_total",
			Help: "ETA estimates by status.",
		}, []string{"status"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_published_total",
			Help: "Total NATS messages published, replies included.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_refresh_interval_seconds",
			Help: "Graph refresh interval in seconds, 0 when disabled.",
		}),
		SearchTimeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_search_timeout_seconds",
			Help: "Per-request search deadline in seconds.",
		}),
	}

	reg.MustRegister(
		c.GraphBuilds, c.GraphBuildDuration, c.GraphNodes, c.GraphBusEdges, c.GraphWalkEdges, c.GraphLastBuilt,
		c.PlanResults, c.PlanDuration, c.ETAResults,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.RefreshInterval, c.SearchTimeout,
	)

	c.RefreshInterval.Set(refreshInterval.Seconds())
	c.SearchTimeout.Set(searchTimeout.Seconds())

	return c
}

// ObserveBuild records a published graph.
func (c *Collector) ObserveBuild(nodes, busEdges, walkEdges int, d time.Duration) {
	c.GraphBuilds.WithLabelValues("built").Inc()
	c.GraphBuildDuration.Observe(d.Seconds())
	c.GraphNodes.Set(float64(nodes))
	c.GraphBusEdges.Set(float64(busEdges))
	c.GraphWalkEdges.Set(float64(walkEdges))
	c.GraphLastBuilt.SetToCurrentTime()
}

// ObserveBuildSkipped records a refresh that found the network unchanged.
func (c *Collector) ObserveBuildSkipped() { c.GraphBuilds.WithLabelValues("unchanged").Inc() }

func (c *Collector) ObserveBuildError() { c.GraphBuilds.WithLabelValues("error").Inc() }

func (c *Collector) ObservePlan(result string, d time.Duration) {
	c.PlanResults.WithLabelValues(result).Inc()
	c.PlanDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveETA(status string) { c.ETAResults.WithLabelValues(status).Inc() }

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	logger = logging.OrDiscard(logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError(logger, "metrics server error", err, slog.String("addr", addr))
		}
	}()
	logger.Info("metrics listening", slog.String("addr", addr))
	return srv
}
