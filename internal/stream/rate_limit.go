package stream

import (
	"sync"
)

// Limiter rejection reasons, used as metric labels.
const (
	reasonPerIP  = "per_ip"
	reasonGlobal = "global"
)

// streamLimiter tracks concurrent stream connections per IP and globally.
// SSE and WebSocket clients share one limiter.
type streamLimiter struct {
	mu          sync.Mutex
	connections map[string]int
	total       int
	maxPerIP    int
	maxTotal    int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxTotal <= 0 {
		maxTotal = 1000
	}
	return &streamLimiter{
		connections: make(map[string]int),
		maxPerIP:    maxPerIP,
		maxTotal:    maxTotal,
	}
}

// acquire registers a connection for ip. On refusal it returns the reason.
func (l *streamLimiter) acquire(ip string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false, reasonGlobal
	}
	if l.connections[ip] >= l.maxPerIP {
		return false, reasonPerIP
	}

	l.connections[ip]++
	l.total++
	return true, ""
}

func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connections[ip] <= 0 {
		return
	}
	l.connections[ip]--
	l.total--
	if l.connections[ip] == 0 {
		delete(l.connections, ip)
	}
}

func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connections[ip]
}

func (l *streamLimiter) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
