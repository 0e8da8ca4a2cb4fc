package opalrt

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

const headerLen = 4

var (
	ErrNotConnected  = errors.New("opalrt: not connected")
	ErrFrameTooLarge = errors.New("opalrt: frame exceeds size limit")
)

// Config points the collector at an OPAL-RT asynchronous data server.
type Config struct {
	Addr           string        `yaml:"addr"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MaxFrameBytes  int           `yaml:"max_frame_bytes"`
	Source         string        `yaml:"source"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:5100"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 1 << 20
	}
	if c.Source == "" {
		c.Source = "opalrt"
	}
}

// Collector reads [4-byte big-endian length][JSON] frames from the simulator
// and sends commands back over the same connection with the same framing.
type Collector struct {
	cfg    Config
	dial   func(ctx context.Context, addr string) (net.Conn, error)
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex
	started bool
}

func NewCollector(cfg Config) *Collector {
	cfg.ApplyDefaults()
	d := &net.Dialer{Timeout: cfg.DialTimeout}
	return &Collector{
		cfg: cfg,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

// Start dials once synchronously so a bad address fails fast; later drops
// are retried in the background.
func (c *Collector) Start(out chan<- *domain.Frame) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("opalrt collector already started")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := c.dial(ctx, c.cfg.Addr)
	if err != nil {
		cancel()
		return fmt.Errorf("opalrt dial %s: %w", c.cfg.Addr, err)
	}
	log.Printf("opalrt: connected to %s", c.cfg.Addr)

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.started = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop(ctx, conn, out)
	return nil
}

func (c *Collector) loop(ctx context.Context, conn net.Conn, out chan<- *domain.Frame) {
	defer c.wg.Done()
	for {
		// closing on cancel unblocks the reader without racing Stop
		release := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err := c.read(ctx, conn, out)
		release()
		c.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Printf("opalrt: connection lost: %v; retrying in %s", err, c.cfg.ReconnectDelay)

		next, ok := c.redial(ctx)
		if !ok {
			return
		}
		conn = next
		c.setConn(conn)
		log.Printf("opalrt: reconnected to %s", c.cfg.Addr)
	}
}

func (c *Collector) redial(ctx context.Context) (net.Conn, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(c.cfg.ReconnectDelay):
		}
		conn, err := c.dial(ctx, c.cfg.Addr)
		if err == nil {
			return conn, true
		}
		log.Printf("opalrt: reconnect %s: %v", c.cfg.Addr, err)
	}
}

func (c *Collector) setConn(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Collector) read(ctx context.Context, conn net.Conn, out chan<- *domain.Frame) error {
	r := bufio.NewReader(conn)
	for {
		payload, err := readMessage(r, c.cfg.MaxFrameBytes)
		if err != nil {
			return err
		}
		var f domain.Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			// the length prefix keeps the stream aligned, so skip and go on
			log.Printf("opalrt: malformed frame: %v", err)
			continue
		}
		if f.Source == "" {
			f.Source = c.cfg.Source
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- &f:
		}
	}
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	return nil
}

// Command sends {"cmd": type, ...} to the simulator.
func (c *Collector) Command(ctx context.Context, cmd domain.Command) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	body := make(map[string]any, len(cmd.Params)+3)
	for k, v := range cmd.Params {
		body[k] = v
	}
	body["cmd"] = cmd.Type
	if cmd.Value != 0 {
		body["value"] = cmd.Value
	}
	if cmd.Duration != 0 {
		body["duration"] = cmd.Duration
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := writeMessage(conn, payload); err != nil {
		return fmt.Errorf("opalrt command %s: %w", cmd.Type, err)
	}
	log.Printf("opalrt: sent command %q", cmd.Type)
	return nil
}

func readMessage(r io.Reader, max int) ([]byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if max > 0 && int64(n) > int64(max) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeMessage(w io.Writer, payload []byte) error {
	buf := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint32(buf[:headerLen], uint32(len(payload)))
	copy(buf[headerLen:], payload)
	_, err := w.Write(buf)
	return err
}

var (
	_ ports.Collector = (*Collector)(nil)
	_ ports.Commander = (*Collector)(nil)
)
