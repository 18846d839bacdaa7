package adapter

import (
	"fmt"
	"net"
	"time"

	"github.com/tarm/serial"
)

// TransportConfig selects and configures the physical link to the
// adapter, mirroring the teacher's transport.Config shape.
type TransportConfig struct {
	Type     string // "serial" or "tcp"
	Address  string // device path (serial) or host:port (tcp)
	BaudRate int     // serial only
	ReadTimeout time.Duration
}

// OpenPort opens the configured transport and returns a Port ready to
// be wrapped in a Driver.
func OpenPort(cfg TransportConfig) (Port, error) {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 200 * time.Millisecond
	}

	switch cfg.Type {
	case "serial":
		baud := cfg.BaudRate
		if baud == 0 {
			baud = 38400
		}
		sc := &serial.Config{
			Name:        cfg.Address,
			Baud:        baud,
			ReadTimeout: readTimeout,
		}
		port, err := serial.OpenPort(sc)
		if err != nil {
			return nil, fmt.Errorf("adapter: open serial port %s: %w", cfg.Address, err)
		}
		return port, nil
	case "tcp":
		conn, err := net.DialTimeout("tcp", cfg.Address, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("adapter: dial tcp %s: %w", cfg.Address, err)
		}
		return &tcpPort{conn: conn, readTimeout: readTimeout}, nil
	default:
		return nil, fmt.Errorf("adapter: unsupported transport type %q", cfg.Type)
	}
}

// tcpPort adapts a net.Conn to the bounded-read contract Driver.Send
// relies on (a Read call that returns n==0, nil after readTimeout
// rather than blocking forever), matching serial.Port's ReadTimeout
// behavior for the TCP-simulator development path.
type tcpPort struct {
	conn        net.Conn
	readTimeout time.Duration
}

func (t *tcpPort) Read(p []byte) (int, error) {
	_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	n, err := t.conn.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (t *tcpPort) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}
