package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"transit-planner/internal/logging"
	"transit-planner/internal/planner"
	"transit-planner/internal/routing"
	"transit-planner/internal/transit"
)

type NATSPublisher struct {
	nc          *nats.Conn
	logSubjects bool
	metrics     PublisherMetrics
	logger      *slog.Logger
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// Planner answers plan requests.
type Planner interface {
	Plan(ctx context.Context, origin, destination transit.LatLng) (*routing.Itinerary, error)
}

func NewNATSPublisher(url string, logSubjects bool, m PublisherMetrics, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logging.OrDiscard(logger)
	nc, err := nats.Connect(url,
		nats.Name("transit-planner"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			if err != nil {
				logging.LogError(logger, "nats disconnected", err)
				return
			}
			logger.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, logSubjects: logSubjects, metrics: m, logger: logger}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			logging.LogError(p.logger, "nats drain failed", err)
		}
		p.nc.Close()
	}
}

// PlanRequest is the body of a plan request on the plan subject.
type PlanRequest struct {
	Origin      transit.LatLng `json:"origin"`
	Destination transit.LatLng `json:"destination"`
}

// PlanReply carries either an itinerary or an error code.
type PlanReply struct {
	Itinerary *routing.Itinerary `json:"itinerary,omitempty"`
	Code      string             `json:"code,omitempty"`
	Error     string             `json:"error,omitempty"`
}

const (
	CodeInvalidRequest = "invalid_request"
	CodeNoPath         = "no_path"
	CodeTimeout        = "timeout"
	CodeCanceled       = "canceled"
	CodeInternal       = "internal"
)

// ServePlans answers plan requests on subject. Instances sharing queue split
// the requests between them.
func (p *NATSPublisher) ServePlans(ctx context.Context, subject, queue string, pl Planner) (*nats.Subscription, error) {
	sub, err := p.nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		reply := handlePlanRequest(ctx, pl, msg.Data)
		if reply.Code == CodeInternal {
			logging.LogError(p.logger, "plan request failed", errors.New(reply.Error),
				slog.String("subject", msg.Subject))
		}
		b, err := json.Marshal(reply)
		if err != nil {
			logging.LogError(p.logger, "marshal plan reply", err)
			return
		}
		if msg.Reply == "" {
			return
		}
		_ = p.publish(msg.Reply, b)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	p.logger.Info("serving plan requests", slog.String("subject", subject), slog.String("queue", queue))
	return sub, nil
}

func handlePlanRequest(ctx context.Context, pl Planner, data []byte) PlanReply {
	var req PlanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return PlanReply{Code: CodeInvalidRequest, Error: "malformed request: " + err.Error()}
	}
	if err := transit.Validator().Struct(req); err != nil {
		return PlanReply{Code: CodeInvalidRequest, Error: err.Error()}
	}
	it, err := pl.Plan(ctx, req.Origin, req.Destination)
	switch {
	case err == nil:
		return PlanReply{Itinerary: it}
	case errors.Is(err, routing.ErrNoPath):
		return PlanReply{Code: CodeNoPath, Error: "no route found, try adjusting your points"}
	case errors.Is(err, context.DeadlineExceeded):
		return PlanReply{Code: CodeTimeout, Error: "search timed out"}
	case errors.Is(err, context.Canceled):
		// shutting down
		return PlanReply{Code: CodeCanceled, Error: "request canceled"}
	default:
		return PlanReply{Code: CodeInternal, Error: err.Error()}
	}
}

// GraphBuiltEvent is published whenever a new graph goes live.
type GraphBuiltEvent struct {
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	Nodes       int       `json:"nodes"`
	BusEdges    int       `json:"busEdges"`
	WalkEdges   int       `json:"walkEdges"`
	Routes      int       `json:"routes"`
	BuiltAt     time.Time `json:"builtAt"`
	BuildMs     int64     `json:"buildMs"`
}

func newGraphBuiltEvent(s planner.Snapshot) GraphBuiltEvent {
	return GraphBuiltEvent{
		Type:        "graph_built",
		Source:      s.Source,
		Fingerprint: strconv.FormatUint(s.Fingerprint, 16),
		Nodes:       s.Stats.Nodes,
		BusEdges:    s.Stats.BusEdges,
		WalkEdges:   s.Stats.WalkEdges,
		Routes:      s.Routes,
		BuiltAt:     s.BuiltAt,
		BuildMs:     s.BuildTime.Milliseconds(),
	}
}

func (p *NATSPublisher) PublishGraphBuilt(subject string, s planner.Snapshot) error {
	b, err := json.Marshal(newGraphBuiltEvent(s))
	if err != nil {
		return err
	}
	return p.publish(subject, b)
}

func (p *NATSPublisher) publish(subject string, b []byte) error {
	if p.logSubjects {
		p.logger.Debug("nats publish", slog.String("subject", subject))
	}
	start := time.Now()
	err := p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// EventSubject builds "<prefix>.<city>.built"; an empty city becomes "_".
func EventSubject(prefix, city string) string {
	return fmt.Sprintf("%s.%s.built", prefix, subjectToken(city))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
