// internal/capture/serial_capture.go
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialConfig represents serial capture configuration
type SerialConfig struct {
	Port           string        `json:"port"`
	BaudRate       int           `json:"baud_rate"`
	DataBits       int           `json:"data_bits"`
	StopBits       int           `json:"stop_bits"`
	Parity         string        `json:"parity"`
	IdleTimeout    time.Duration `json:"idle_timeout"`
	ReadBufferSize int           `json:"read_buffer_size"`
	QueueSize      int           `json:"queue_size"`
}

// Mode converts the configuration to a serial port mode.
func (c SerialConfig) Mode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: serial.OneStopBit,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = 9600
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if c.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch c.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode
}

// portReader is the part of serial.Port used for capture.
type portReader interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

type portOpener func(name string, mode *serial.Mode) (portReader, error)

func openSerialPort(name string, mode *serial.Mode) (portReader, error) {
	return serial.Open(name, mode)
}

// SerialCapture reads jobs from a serial line. With no framing on the wire
// a job ends after IdleTimeout without data.
type SerialCapture struct {
	config SerialConfig
	port   portReader
	logger *zap.Logger
	out    emitter
	stats  statsRecorder

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// OpenSerial opens cfg.Port and starts reading jobs from it.
func OpenSerial(cfg SerialConfig, logger *zap.Logger) (*SerialCapture, error) {
	return openSerial(cfg, logger, openSerialPort)
}

func openSerial(cfg SerialConfig, logger *zap.Logger, open portOpener) (*SerialCapture, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial port is required")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultReadTimeout
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	mode := cfg.Mode()
	logger = logger.With(
		zap.String("capture", "serial"),
		zap.String("port", cfg.Port),
	)
	logger.Info("Opening serial port", zap.Int("baud_rate", mode.BaudRate))

	port, err := open(cfg.Port, mode)
	if err != nil {
		logger.Error("Failed to open serial port", zap.Error(err))
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := port.SetReadTimeout(cfg.IdleTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc := &SerialCapture{
		config: cfg,
		port:   port,
		logger: logger,
	}
	sc.out = newEmitter(cfg.QueueSize, &sc.stats)
	sc.stats.update(func(s *Stats) {
		s.Listening = true
		s.ActiveReceivers = 1
	})

	sc.wg.Add(1)
	go sc.readLoop()
	return sc, nil
}

func (sc *SerialCapture) Jobs() <-chan CapturedJob {
	return sc.out.jobs
}

func (sc *SerialCapture) Describe() string {
	return "serial://" + sc.config.Port
}

func (sc *SerialCapture) Stats() Stats {
	return sc.stats.snapshot()
}

// Stop closes the port and waits for the reader to exit.
func (sc *SerialCapture) Stop() {
	sc.stopOnce.Do(func() {
		close(sc.out.stop)
		if err := sc.port.Close(); err != nil {
			sc.logger.Warn("Failed to close serial port", zap.Error(err))
		}
		sc.wg.Wait()
		close(sc.out.jobs)
		sc.stats.update(func(s *Stats) {
			s.Listening = false
			s.ActiveReceivers = 0
		})
		sc.logger.Info("Serial capture stopped")
	})
}

func (sc *SerialCapture) readLoop() {
	defer sc.wg.Done()

	source := sc.Describe()
	var payload []byte
	buf := make([]byte, sc.config.ReadBufferSize)

	flush := func() {
		if sc.out.emit(source, payload) {
			sc.logger.Info("Job captured", zap.Int("bytes", len(payload)))
		}
		payload = nil
	}

	for !sc.out.stopping() {
		n, err := sc.port.Read(buf)
		if n > 0 {
			payload = append(payload, buf[:n]...)
			sc.stats.update(func(s *Stats) {
				s.BytesRead += int64(n)
				s.LastActivity = time.Now()
			})
		}

		switch {
		case err == nil && n == 0:
			// Read timed out with the line idle.
			flush()
		case err == nil:
		case errors.Is(err, io.EOF):
			flush()
			return
		default:
			if !sc.out.stopping() {
				sc.stats.update(func(s *Stats) { s.ErrorCount++ })
				sc.logger.Error("Serial read failed", zap.Error(err))
			}
			flush()
			return
		}
	}
}
