package capture

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func startListener(t *testing.T, readTimeout time.Duration) *TCPListener {
	t.Helper()
	l, err := Listen(ListenerConfig{
		Address:     "127.0.0.1:0",
		ReadTimeout: readTimeout,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(l.Stop)
	return l
}

func dial(t *testing.T, l *TCPListener) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitJob(t *testing.T, l *TCPListener, within time.Duration) CapturedJob {
	t.Helper()
	select {
	case job, ok := <-l.Jobs():
		if !ok {
			t.Fatal("jobs channel closed")
		}
		return job
	case <-time.After(within):
		t.Fatal("timed out waiting for job")
	}
	return CapturedJob{}
}

func expectNoJob(t *testing.T, l *TCPListener, within time.Duration) {
	t.Helper()
	select {
	case job := <-l.Jobs():
		t.Fatalf("unexpected job from %s (%d bytes)", job.Source, len(job.Payload))
	case <-time.After(within):
	}
}

func TestTCPListener_JobOnClose(t *testing.T) {
	l := startListener(t, 5*time.Second)
	conn := dial(t, l)

	payload := []byte{0x1B, 0x40, 'H', 'i', '\n', 0x1D, 0x56, 0x00}
	if _, err := conn.Write(payload[:3]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := conn.Write(payload[3:]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	conn.Close()

	job := waitJob(t, l, 2*time.Second)
	if !bytes.Equal(job.Payload, payload) {
		t.Errorf("payload = % X, want % X", job.Payload, payload)
	}
	if !strings.Contains(job.Source, " -> "+l.Addr().String()) {
		t.Errorf("source = %q", job.Source)
	}
	if job.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}
	expectNoJob(t, l, 100*time.Millisecond)
}

func TestTCPListener_JobOnIdleTimeout(t *testing.T) {
	l := startListener(t, 150*time.Millisecond)
	conn := dial(t, l)
	defer conn.Close()

	if _, err := conn.Write([]byte("partial")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	job := waitJob(t, l, 2*time.Second)
	if string(job.Payload) != "partial" {
		t.Errorf("payload = %q, want partial", job.Payload)
	}

	// The handler has exited, so later silence must not yield a second job.
	expectNoJob(t, l, 400*time.Millisecond)
}

func TestTCPListener_EmptyConnectionDropped(t *testing.T) {
	l := startListener(t, 5*time.Second)
	conn := dial(t, l)
	conn.Close()
	expectNoJob(t, l, 200*time.Millisecond)
}

func TestTCPListener_ConcurrentConnections(t *testing.T) {
	l := startListener(t, 5*time.Second)

	first := dial(t, l)
	second := dial(t, l)
	first.Write([]byte("AAAA"))
	second.Write([]byte("BBBB"))
	first.Write([]byte("aaaa"))
	second.Close()
	first.Close()

	got := map[string]bool{}
	for n := 0; n < 2; n++ {
		got[string(waitJob(t, l, 2*time.Second).Payload)] = true
	}
	if !got["AAAAaaaa"] || !got["BBBB"] {
		t.Errorf("jobs = %v, want AAAAaaaa and BBBB", got)
	}
}

func TestTCPListener_PeerResetFlushesPartialJob(t *testing.T) {
	l := startListener(t, 5*time.Second)
	conn := dial(t, l)

	if _, err := conn.Write([]byte("partial")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// Linger 0 makes Close send RST instead of FIN.
	if err := conn.(*net.TCPConn).SetLinger(0); err != nil {
		t.Fatalf("SetLinger failed: %v", err)
	}
	conn.Close()

	job := waitJob(t, l, 2*time.Second)
	if string(job.Payload) != "partial" {
		t.Errorf("payload = %q, want partial", job.Payload)
	}
	if got := l.Stats().ErrorCount; got != 1 {
		t.Errorf("ErrorCount = %d, want 1", got)
	}
}

func TestTCPListener_BindError(t *testing.T) {
	l := startListener(t, time.Second)

	_, err := Listen(ListenerConfig{Address: l.Addr().String()}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("expected bind error for address in use")
	}
	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("error = %T, want *BindError", err)
	}
	if bindErr.Address != l.Addr().String() {
		t.Errorf("Address = %q", bindErr.Address)
	}
}

func TestTCPListener_Stop(t *testing.T) {
	l, err := Listen(ListenerConfig{Address: "127.0.0.1:0"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	// An open connection with a long read timeout must not hold up Stop.
	conn := dial(t, l)
	defer conn.Close()
	conn.Write([]byte("in flight"))
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	for job := range l.Jobs() {
		t.Errorf("job emitted during stop: %q", job.Payload)
	}
	if l.Stats().Listening {
		t.Error("stats still report listening")
	}

	// Second call is a no-op.
	l.Stop()
}

func TestTCPListener_StopDuringSteadyWrites(t *testing.T) {
	for i := 0; i < 20; i++ {
		l, err := Listen(ListenerConfig{Address: "127.0.0.1:0", ReadTimeout: 5 * time.Second}, zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("Listen failed: %v", err)
		}
		conn := dial(t, l)

		// Keep the receiver re-arming its deadline while Stop runs.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				if _, err := conn.Write([]byte("x")); err != nil {
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
		time.Sleep(10 * time.Millisecond)

		start := time.Now()
		l.Stop()
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Fatalf("iteration %d: Stop took %v", i, elapsed)
		}
		conn.Close()
		<-writerDone
	}
}

func TestTCPListener_Stats(t *testing.T) {
	l := startListener(t, 5*time.Second)
	conn := dial(t, l)
	conn.Write([]byte("12345"))
	conn.Close()
	waitJob(t, l, 2*time.Second)

	stats := l.Stats()
	if stats.Connections != 1 || stats.BytesRead != 5 || !stats.Listening {
		t.Errorf("stats = %+v", stats)
	}
}
