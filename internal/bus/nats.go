// Package bus carries job-submitted notices between intake and workers over NATS.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// JobSubmitted is the payload published for every new job.
type JobSubmitted struct {
	JobID       uuid.UUID `json:"job_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Client struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

func Connect(url, subject string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("slides-explainer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc, subject: subject, logger: logger}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) Conn() *nats.Conn { return c.nc }

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

func (c *Client) SubscribeJSON(subject string, handler func(ctx context.Context, data []byte)) (*nats.Subscription, error) {
	return c.nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		handler(ctx, msg.Data)
	})
}

// JobSubmitted publishes a submit notice on the configured subject.
func (c *Client) JobSubmitted(_ context.Context, jobID uuid.UUID) error {
	return c.PublishJSON(c.subject, JobSubmitted{JobID: jobID, SubmittedAt: time.Now().UTC()})
}

// OnJobSubmitted calls wake for every well-formed notice on the configured subject.
func (c *Client) OnJobSubmitted(wake func(jobID uuid.UUID)) (*nats.Subscription, error) {
	return c.SubscribeJSON(c.subject, func(_ context.Context, data []byte) {
		var ev JobSubmitted
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("bus.job_submitted.decode_failed", "error", err)
			return
		}
		c.logger.Debug("bus.job_submitted", "job_id", ev.JobID)
		wake(ev.JobID)
	})
}
