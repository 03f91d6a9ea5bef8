package prober

import (
	"fmt"
	"net"
	"sync"
)

// claimed tracks ports handed out to in-flight probes so two probes never
// bind the same local port even after the reserving listener is closed.
var (
	claimedMu sync.Mutex
	claimed   = make(map[int]struct{})
)

// claimPort reserves an ephemeral port for exclusive use until the
// returned release func runs.
func claimPort() (int, func(), error) {
	for attempt := 0; attempt < 16; attempt++ {
		port, err := freePort()
		if err != nil {
			return 0, nil, err
		}

		claimedMu.Lock()
		if _, busy := claimed[port]; busy {
			claimedMu.Unlock()
			continue
		}
		claimed[port] = struct{}{}
		claimedMu.Unlock()

		release := func() {
			claimedMu.Lock()
			delete(claimed, port)
			claimedMu.Unlock()
		}
		return port, release, nil
	}
	return 0, nil, fmt.Errorf("no free local port available")
}

func freePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
