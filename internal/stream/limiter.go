package stream

import "sync"

// Denial reasons reported when a stream slot cannot be reserved; they label
// the stream error metric.
const (
	denyIPLimit     = "ip_limit"
	denyGlobalLimit = "global_limit"
)

// connLimiter bounds concurrent frame streams, per client IP and across the
// whole process. Frame events fan out to every connection each tick, so an
// unbounded stream count would turn one tick into unbounded encode work.
type connLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newConnLimiter(maxPerIP, maxTotal int) *connLimiter {
	return &connLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire reserves a stream slot for ip. On refusal it reports which limit
// was hit so the caller can label the error metric.
func (l *connLimiter) acquire(ip string) (ok bool, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false, denyGlobalLimit
	}
	if l.perIP[ip] >= l.maxPerIP {
		return false, denyIPLimit
	}

	l.perIP[ip]++
	l.total++
	return true, ""
}

// release returns ip's slot. Fully released IPs are dropped from the map so
// it stays proportional to active clients.
func (l *connLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIP[ip] <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip]--
	}
	if l.total > 0 {
		l.total--
	}
}

// active returns the number of streams currently held by ip.
func (l *connLimiter) active(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// activeTotal returns the number of streams held across all IPs.
func (l *connLimiter) activeTotal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
