package fetch

import (
	"net"
	"time"
)

// ConnectivityChecker reports whether the network is reachable at all,
// so the client can distinguish an origin outage from a local one.
type ConnectivityChecker interface {
	Online() bool
}

type dialChecker struct {
	addr    string
	timeout time.Duration
}

// NewDialChecker probes connectivity by opening a TCP connection to a
// known-reachable address (a public DNS resolver by default).
func NewDialChecker(addr string) ConnectivityChecker {
	return &dialChecker{addr: addr, timeout: 3 * time.Second}
}

func (d *dialChecker) Online() bool {
	conn, err := net.DialTimeout("tcp", d.addr, d.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
