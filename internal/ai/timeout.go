package ai

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// timeouts are the four independent components derived from the profile's
// single timeout_seconds knob.
type timeouts struct {
	connect time.Duration
	write   time.Duration
	pool    time.Duration
	read    time.Duration
}

// buildTimeouts shapes the user-configured timeout. Connect, write, and
// pool-acquire are capped at short bounds; the read component keeps the full
// value uncapped, because for a streamed response it means "no new bytes for
// this long", not total call duration.
func buildTimeouts(timeoutSeconds int) timeouts {
	full := time.Duration(timeoutSeconds) * time.Second
	if full <= 0 {
		full = 120 * time.Second
	}
	capped := func(limit time.Duration) time.Duration {
		if full < limit {
			return full
		}
		return limit
	}
	return timeouts{
		connect: capped(30 * time.Second),
		write:   capped(60 * time.Second),
		pool:    capped(30 * time.Second),
		read:    full,
	}
}

func newHTTPClient(t timeouts) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   t.connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   t.pool,
			ResponseHeaderTimeout: t.write,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// idleReader wraps a streamed response body with an inactivity watchdog:
// each Read re-arms a timer, and if no bytes arrive within the window the
// request context is cancelled with errReadIdle.
type idleReader struct {
	body   io.Reader
	timer  *time.Timer
	window time.Duration
}

// watchBody cancels cancel(errReadIdle) when the body stays silent longer
// than window. The returned reader must be used in place of body.
func watchBody(body io.Reader, window time.Duration, cancel context.CancelCauseFunc) *idleReader {
	timer := time.AfterFunc(window, func() {
		cancel(errReadIdle)
	})
	return &idleReader{body: body, timer: timer, window: window}
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err == nil {
		r.timer.Reset(r.window)
	} else {
		r.timer.Stop()
	}
	return n, err
}

func (r *idleReader) stop() {
	r.timer.Stop()
}
