package feeder

import (
	"context"
	"fmt"
	"sync"
	"time"

	natslib "github.com/nats-io/nats.go"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/torosent/fluvial/internal/record"
)

// NATSOptions configure a live NATS feeder.
type NATSOptions struct {
	URL        string
	Subject    string
	Queue      string   // optional queue group
	Columns    []string // declared schema; messages are JSON objects keyed by these columns
	BufferSize int
	Logger     *zap.SugaredLogger
}

// NATSFeeder receives rows as JSON objects published on a NATS subject. It is
// unbounded: Next blocks until a message arrives, the context ends or the
// feeder is closed.
type NATSFeeder struct {
	columns  []string
	logger   *zap.SugaredLogger
	conn     *natslib.Conn
	sub      *natslib.Subscription
	messages chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewNATSFeeder connects to the server and subscribes to the subject.
func NewNATSFeeder(opts NATSOptions) (*NATSFeeder, error) {
	if opts.URL == "" || opts.Subject == "" {
		return nil, fmt.Errorf("nats feeder requires url and subject")
	}
	if len(opts.Columns) == 0 {
		return nil, fmt.Errorf("nats feeder requires declared columns")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000 // default size
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	n := &NATSFeeder{
		columns:  append([]string(nil), opts.Columns...),
		logger:   logger,
		messages: make(chan []byte, opts.BufferSize),
		done:     make(chan struct{}),
	}

	logger.Infow("Connecting to nats service", "url", opts.URL, "subject", opts.Subject)
	conn, err := natslib.Connect(opts.URL,
		natslib.MaxReconnects(-1),
		natslib.ReconnectWait(3*time.Second),
		natslib.DisconnectErrHandler(func(c *natslib.Conn, err error) {
			if err != nil {
				logger.Errorw("Nats disconnected", zap.Error(err))
			}
		}),
		natslib.ReconnectHandler(func(c *natslib.Conn) {
			logger.Info("Nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats server, %w", err)
	}
	n.conn = conn

	handler := func(msg *natslib.Msg) {
		select {
		case n.messages <- msg.Data:
		case <-n.done:
		}
	}
	var sub *natslib.Subscription
	if opts.Queue != "" {
		sub, err = conn.QueueSubscribe(opts.Subject, opts.Queue, handler)
	} else {
		sub, err = conn.Subscribe(opts.Subject, handler)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to nats subject %q, %w", opts.Subject, err)
	}
	n.sub = sub
	return n, nil
}

func (n *NATSFeeder) Columns() []string {
	return append([]string(nil), n.columns...)
}

// Next waits for the next message. A message that is not a JSON object is
// reported as an error and the feeder stays usable.
func (n *NATSFeeder) Next(ctx context.Context) (Row, error) {
	select {
	case <-n.done:
		return nil, record.ErrExhausted
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-n.done:
		return nil, record.ErrExhausted
	case data := <-n.messages:
		obj := gjson.ParseBytes(data)
		if !obj.IsObject() {
			return nil, fmt.Errorf("decode nats message: expected a JSON object")
		}
		row := make(Row, len(n.columns))
		for _, col := range n.columns {
			row[col] = cellText(obj.Get(gjson.Escape(col)))
		}
		return row, nil
	}
}

// Close unsubscribes and closes the connection. It is safe to call more than once.
func (n *NATSFeeder) Close() error {
	n.once.Do(func() {
		close(n.done)
		n.logger.Info("Shutting down nats feeder")
		if err := n.sub.Unsubscribe(); err != nil {
			n.logger.Errorw("Failed to unsubscribe nats subscription", zap.Error(err))
		}
		n.conn.Close()
	})
	return nil
}

func (n *NATSFeeder) Len() int {
	return -1
}
