package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bidforge/readiness/internal/analysis"
	"github.com/bidforge/readiness/internal/monitoring"
)

// Subjects relative to the configured prefix.
const (
	SubjectSnapshotRecorded = "snapshot.recorded"
	SubjectOutcomeRecorded  = "outcome.recorded"
	SubjectConfigApplied    = "config.applied"
	SubjectTuningSuggested  = "tuning.suggested"
)

// Config holds NATS publisher configuration
type Config struct {
	URL     string        // NATS server URL; empty disables publishing
	Prefix  string        // subject prefix (default: "readiness")
	Timeout time.Duration // connection timeout
}

// Event is the envelope published on every subject.
type Event struct {
	Type       string      `json:"type"`
	BidID      string      `json:"bidId,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// Publisher emits readiness lifecycle events for downstream product surfaces
// (notification feeds, dashboards). Events are advisory: when NATS is not
// configured or unreachable the publisher degrades to a no-op and request
// handling is never blocked on delivery.
type Publisher struct {
	conn    *nats.Conn
	prefix  string
	metrics *monitoring.Metrics
}

// NewPublisher connects to NATS. An empty URL or a failed connect yields a
// disabled publisher.
func NewPublisher(cfg Config, metrics *monitoring.Metrics) *Publisher {
	if cfg.Prefix == "" {
		cfg.Prefix = "readiness"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.URL == "" {
		slog.Warn("NATS not configured, event publishing disabled")
		return &Publisher{prefix: cfg.Prefix, metrics: metrics}
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		slog.Error("NATS connect failed, event publishing disabled", "url", cfg.URL, "error", err)
		return &Publisher{prefix: cfg.Prefix, metrics: metrics}
	}

	slog.Info("NATS event publisher connected", "url", cfg.URL, "prefix", cfg.Prefix)

	return &Publisher{
		conn:    nc,
		prefix:  cfg.Prefix,
		metrics: metrics,
	}
}

// Enabled reports whether events are actually being delivered.
func (p *Publisher) Enabled() bool {
	return p != nil && p.conn != nil
}

// HealthCheck reports the connection state for health reporting.
func (p *Publisher) HealthCheck() error {
	if !p.Enabled() {
		return fmt.Errorf("nats is disabled")
	}
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats is not connected")
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.Enabled() {
		p.conn.Close()
	}
}

// PublishSnapshotRecorded announces a stored submission-time snapshot.
func (p *Publisher) PublishSnapshotRecorded(rec *analysis.OutcomeRecord) {
	payload := map[string]interface{}{"recordId": rec.ID}
	if rec.Snapshot != nil {
		payload["score"] = rec.Snapshot.Score
		payload["recommendation"] = rec.Snapshot.Recommendation
	}
	p.publish(SubjectSnapshotRecorded, rec.BidID, payload)
}

// PublishOutcomeRecorded announces a recorded bid decision.
func (p *Publisher) PublishOutcomeRecorded(rec *analysis.OutcomeRecord) {
	p.publish(SubjectOutcomeRecorded, rec.BidID, map[string]interface{}{
		"recordId": rec.ID,
		"outcome":  rec.Outcome,
	})
}

// PublishConfigApplied announces a new active scoring config version.
func (p *Publisher) PublishConfigApplied(version string, changes int) {
	p.publish(SubjectConfigApplied, "", map[string]interface{}{
		"version": version,
		"changes": changes,
	})
}

// PublishTuningSuggested announces that the advisor produced suggestions.
func (p *Publisher) PublishTuningSuggested(suggestions []analysis.TuningSuggestion) {
	if len(suggestions) == 0 {
		return
	}
	p.publish(SubjectTuningSuggested, "", map[string]interface{}{
		"count": len(suggestions),
		"top":   suggestions[0].ID,
	})
}

func (p *Publisher) publish(subject, bidID string, payload interface{}) {
	if !p.Enabled() {
		return // Skip publishing if no NATS connection (graceful degradation)
	}

	data, err := json.Marshal(Event{
		Type:       subject,
		BidID:      bidID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("Failed to encode event", "subject", subject, "error", err)
		return
	}

	full := p.prefix + "." + subject
	if err := p.conn.Publish(full, data); err != nil {
		slog.Warn("Failed to publish event", "subject", full, "error", err)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordEvent(subject)
	}
}
