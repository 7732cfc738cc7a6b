package storefront

import (
	"sync"
	"time"
)

// failureWindow counts failed logins since the first one in the window.
type failureWindow struct {
	first time.Time
	count int
}

// LoginLimiter locks an IP out of the admin login once it has failed max
// times within window of its first failure.
type LoginLimiter struct {
	mu       sync.Mutex
	failures map[string]*failureWindow
	max      int
	window   time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewLoginLimiter starts a limiter and its janitor. Call Stop when done.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		failures: make(map[string]*failureWindow),
		max:      max,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go l.janitor()
	return l
}

func (l *LoginLimiter) janitor() {
	tick := time.NewTicker(l.window)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep forgets every window that has run out.
func (l *LoginLimiter) sweep() {
	now := l.now()
	l.mu.Lock()
	for ip, w := range l.failures {
		if l.expired(w, now) {
			delete(l.failures, ip)
		}
	}
	l.mu.Unlock()
}

func (l *LoginLimiter) expired(w *failureWindow, now time.Time) bool {
	return !now.Before(w.first.Add(l.window))
}

// Check reports whether ip may attempt another login. It records nothing.
func (l *LoginLimiter) Check(ip string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.failures[ip]
	if !ok {
		return true
	}
	if l.expired(w, now) {
		delete(l.failures, ip)
		return true
	}
	return w.count < l.max
}

// Record counts a failed login for ip.
func (l *LoginLimiter) Record(ip string) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.failures[ip]
	if !ok || l.expired(w, now) {
		l.failures[ip] = &failureWindow{first: now, count: 1}
		return
	}
	w.count++
}

// Reset clears ip after a successful login.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	delete(l.failures, ip)
	l.mu.Unlock()
}

// Stop ends the janitor goroutine. Safe to call twice.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
