package stream

import (
	"sync"
)

// DefaultMaxTotal is the global cap on concurrent streams.
const DefaultMaxTotal = 1000

// Limiter tracks concurrent streams per IP and globally.
type Limiter struct {
	mu          sync.Mutex
	connections map[string]int
	total       int
	maxPerIP    int
	maxTotal    int
}

// NewLimiter allows maxPerIP concurrent streams per client and maxTotal in
// all. A non-positive maxTotal selects DefaultMaxTotal.
func NewLimiter(maxPerIP, maxTotal int) *Limiter {
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}
	return &Limiter{
		connections: make(map[string]int),
		maxPerIP:    maxPerIP,
		maxTotal:    maxTotal,
	}
}

// Acquire attempts to register a new stream for ip.
// Returns false if the IP or global limit has been reached.
func (l *Limiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false
	}
	if l.connections[ip] >= l.maxPerIP {
		return false
	}

	l.connections[ip]++
	l.total++
	return true
}

// Release ends a stream previously registered with Acquire.
func (l *Limiter) Release(ip string) {
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

// Count returns the number of active streams for ip.
func (l *Limiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connections[ip]
}
