package progress

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/ai-models/panguweather/internal/ctxlog"
)

// DefaultEvent is the socket.io event name used for progress.
const DefaultEvent = "forecast_progress"

// DialTimeout bounds the wait for the socket.io handshake.
var DialTimeout = 15 * time.Second

// ErrNotConnected is returned when publishing on a closed connection.
var ErrNotConnected = errors.New("socket.io client is not connected")

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}

// Publisher emits progress events to a socket.io server.
type Publisher struct {
	io    *socket.Socket
	event string
}

var _ Notifier = (*Publisher)(nil)

// Dial connects to the server and waits for the handshake.
func Dial(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse progress URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("progress URL %q needs a scheme and a host", cfg.URL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Progress publisher connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, ok := errs[0].(error)
		if !ok {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(DialTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", DialTimeout)
	}

	event := cfg.Event
	if event == "" {
		event = DefaultEvent
	}
	return &Publisher{io: io, event: event}, nil
}

// Publish implements Notifier.
func (p *Publisher) Publish(_ context.Context, e Event) error {
	if p.io == nil || !p.io.Connected() {
		return ErrNotConnected
	}
	p.io.Emit(p.event, e.Payload())
	return nil
}

// Close disconnects.
func (p *Publisher) Close() error {
	if p.io == nil {
		return nil
	}
	p.io.Disconnect()
	p.io = nil
	return nil
}
