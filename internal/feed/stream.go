package feed

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pumpfun-sentinel/internal/observability"
)

// StreamConfig configures the WebSocket feed source.
type StreamConfig struct {
	// ReconnectDelay is initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// Buffer is the outbound channel capacity.
	Buffer int
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		Buffer:            256,
	}
}

// Stream is an optional push source for new launches. It feeds the same
// claim path as polling; the deduplicator makes the overlap harmless.
type Stream struct {
	endpoint string
	config   StreamConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	wg     sync.WaitGroup
}

// NewStream creates a stream source for the given WebSocket endpoint.
func NewStream(endpoint string, config *StreamConfig, logger *log.Logger) *Stream {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Stream{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
	}
}

// Subscribe connects and returns a channel of raw token payloads. The
// channel closes when ctx is cancelled. Dropped connections reconnect
// with capped exponential backoff.
func (s *Stream) Subscribe(ctx context.Context) (<-chan RawToken, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	out := make(chan RawToken, s.config.Buffer)

	s.wg.Add(1)
	go s.readLoop(ctx, out)

	s.wg.Add(1)
	go s.pingLoop(ctx)

	return out, nil
}

// Wait blocks until the stream goroutines have exited.
func (s *Stream) Wait() {
	s.wg.Wait()
}

func (s *Stream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *Stream) readLoop(ctx context.Context, out chan<- RawToken) {
	defer s.wg.Done()
	defer close(out)
	defer s.closeConn()

	delay := s.config.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Printf("stream read error, reconnecting in %s: %v", delay, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			observability.RecordStreamReconnect()
			if err := s.connect(ctx); err != nil {
				s.logger.Printf("stream reconnect failed: %v", err)
			}
			continue
		}
		delay = s.config.ReconnectDelay

		var raw RawToken
		if err := json.Unmarshal(msg, &raw); err != nil {
			s.logger.Printf("stream: skip undecodable message: %v", err)
			continue
		}

		select {
		case out <- raw:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) pingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			}
			s.connMu.Unlock()
		}
	}
}

func (s *Stream) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}
