// internal/capture/tcp_listener.go
package capture

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Listener defaults match a raw port 9100 printer.
const (
	DefaultReadTimeout        = 5 * time.Second
	DefaultAcceptPollInterval = 25 * time.Millisecond
	DefaultReadBufferSize     = 8192
	DefaultQueueSize          = 64
)

// ListenerConfig represents TCP capture configuration
type ListenerConfig struct {
	Address            string        `json:"address"`
	ReadTimeout        time.Duration `json:"read_timeout"`
	AcceptPollInterval time.Duration `json:"accept_poll_interval"`
	ReadBufferSize     int           `json:"read_buffer_size"`
	QueueSize          int           `json:"queue_size"`
}

func (c ListenerConfig) withDefaults() ListenerConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.AcceptPollInterval <= 0 {
		c.AcceptPollInterval = DefaultAcceptPollInterval
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// TCPListener accepts raw print connections and turns each one into a job.
// A job ends when the peer closes the connection or stays silent for
// ReadTimeout.
type TCPListener struct {
	config ListenerConfig
	ln     *net.TCPListener
	logger *zap.Logger
	out    emitter
	stats  statsRecorder

	wg       sync.WaitGroup
	stopOnce sync.Once

	connMutex sync.Mutex
	conns     map[net.Conn]struct{}
}

// Listen binds cfg.Address and starts accepting connections. A bind
// failure is returned as a *BindError and is not retried.
func Listen(cfg ListenerConfig, logger *zap.Logger) (*TCPListener, error) {
	cfg = cfg.withDefaults()

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, &BindError{Address: cfg.Address, Err: err}
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, &BindError{Address: cfg.Address, Err: fmt.Errorf("unexpected listener type %T", ln)}
	}

	l := &TCPListener{
		config: cfg,
		ln:     tcpLn,
		logger: logger.With(
			zap.String("capture", "tcp"),
			zap.String("address", tcpLn.Addr().String()),
		),
		conns: make(map[net.Conn]struct{}),
	}
	l.out = newEmitter(cfg.QueueSize, &l.stats)
	l.stats.update(func(s *Stats) { s.Listening = true })

	l.wg.Add(1)
	go l.acceptLoop()

	l.logger.Info("TCP capture listening",
		zap.Duration("read_timeout", cfg.ReadTimeout),
		zap.Int("queue_size", cfg.QueueSize),
	)
	return l, nil
}

// Jobs returns the queue of captured jobs. It is closed after Stop.
func (l *TCPListener) Jobs() <-chan CapturedJob {
	return l.out.jobs
}

// Addr returns the bound address, useful when listening on port 0.
func (l *TCPListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *TCPListener) Describe() string {
	return "tcp://" + l.ln.Addr().String()
}

func (l *TCPListener) Stats() Stats {
	s := l.stats.snapshot()
	l.connMutex.Lock()
	s.ActiveReceivers = len(l.conns)
	l.connMutex.Unlock()
	return s
}

// Stop closes the listener, cuts in-flight reads short and waits for every
// goroutine to exit. Jobs still being received are dropped. Stop is safe to
// call more than once.
func (l *TCPListener) Stop() {
	l.stopOnce.Do(func() {
		close(l.out.stop)
		if err := l.ln.Close(); err != nil {
			l.logger.Warn("Failed to close TCP listener", zap.Error(err))
		}

		l.connMutex.Lock()
		for conn := range l.conns {
			conn.SetReadDeadline(time.Now())
		}
		l.connMutex.Unlock()

		l.wg.Wait()
		close(l.out.jobs)
		l.stats.update(func(s *Stats) { s.Listening = false })
		l.logger.Info("TCP capture stopped")
	})
}

func (l *TCPListener) acceptLoop() {
	defer l.wg.Done()

	for !l.out.stopping() {
		l.ln.SetDeadline(time.Now().Add(l.config.AcceptPollInterval))
		conn, err := l.ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if l.out.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			l.stats.update(func(s *Stats) { s.ErrorCount++ })
			l.logger.Warn("Accept failed", zap.Error(err))
			time.Sleep(l.config.AcceptPollInterval)
			continue
		}

		if !l.track(conn) {
			conn.Close()
			return
		}
		l.stats.update(func(s *Stats) { s.Connections++ })
		l.wg.Add(1)
		go l.receive(conn)
	}
}

// track registers conn so Stop can interrupt its reads. It refuses once
// stopping has begun.
func (l *TCPListener) track(conn net.Conn) bool {
	l.connMutex.Lock()
	defer l.connMutex.Unlock()
	if l.out.stopping() {
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *TCPListener) untrack(conn net.Conn) {
	l.connMutex.Lock()
	delete(l.conns, conn)
	l.connMutex.Unlock()
}

// armRead pushes conn's read deadline out by ReadTimeout. It holds
// connMutex so a concurrent Stop cannot have its deadline overwritten, and
// reports false once stopping has begun.
func (l *TCPListener) armRead(conn net.Conn) (bool, error) {
	l.connMutex.Lock()
	defer l.connMutex.Unlock()
	if l.out.stopping() {
		return false, nil
	}
	return true, conn.SetReadDeadline(time.Now().Add(l.config.ReadTimeout))
}

// receive reads one connection to completion and emits its bytes as a
// single job.
func (l *TCPListener) receive(conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)
	defer conn.Close()

	source := fmt.Sprintf("%s -> %s", conn.RemoteAddr(), l.ln.Addr())
	logger := l.logger.With(zap.String("peer", conn.RemoteAddr().String()))

	var payload []byte
	buf := make([]byte, l.config.ReadBufferSize)
	for {
		armed, err := l.armRead(conn)
		if err != nil {
			logger.Warn("Failed to set read deadline", zap.Error(err))
			break
		}
		if !armed {
			break
		}
		n, err := conn.Read(buf)
		if n > 0 {
			payload = append(payload, buf[:n]...)
			l.stats.update(func(s *Stats) {
				s.BytesRead += int64(n)
				s.LastActivity = time.Now()
			})
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF):
			logger.Debug("Peer closed connection", zap.Int("bytes", len(payload)))
		case errors.As(err, &netErr) && netErr.Timeout():
			logger.Debug("Connection idle, closing job", zap.Int("bytes", len(payload)))
		default:
			l.stats.update(func(s *Stats) { s.ErrorCount++ })
			logger.Warn("Read failed, flushing partial job", zap.Error(err), zap.Int("bytes", len(payload)))
		}
		break
	}

	if l.out.emit(source, payload) {
		logger.Info("Job captured", zap.Int("bytes", len(payload)))
	}
}
