package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	MailSubject = "mail.send"
	mailQueue   = "mailers"
	replyOK     = "ok"
)

// NATSTransport hands messages to a mail worker over request/reply, so
// Send returns only after the worker has delivered or failed.
type NATSTransport struct {
	conn    *nats.Conn
	timeout time.Duration
}

func NewNATSTransport(conn *nats.Conn, timeout time.Duration) *NATSTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NATSTransport{conn: conn, timeout: timeout}
}

func (t *NATSTransport) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	reply, err := t.conn.RequestWithContext(ctx, MailSubject, data)
	if err != nil {
		return fmt.Errorf("mail request: %w", err)
	}
	if string(reply.Data) != replyOK {
		return errors.New(string(reply.Data))
	}
	return nil
}

// SubscribeMailRequests delivers queued mail requests through transport and
// replies with "ok" or the delivery error.
func SubscribeMailRequests(natsConn *nats.Conn, transport Transport, log *logrus.Logger) (*nats.Subscription, error) {
	return natsConn.QueueSubscribe(MailSubject, mailQueue, func(msg *nats.Msg) {
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			log.WithError(err).Warn("failed to parse mail request")
			_ = msg.Respond([]byte("invalid mail request"))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := transport.Send(ctx, m); err != nil {
			log.WithError(err).WithField("to", m.To).Error("mail delivery failed")
			_ = msg.Respond([]byte(err.Error()))
			return
		}

		log.WithField("to", m.To).Info("mail delivered")
		_ = msg.Respond([]byte(replyOK))
	})
}
