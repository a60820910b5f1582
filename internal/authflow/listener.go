// Package authflow implements the OAuth2 authorization-code flow
// against the Twitch identity provider: the transient local redirect
// listener, browser hand-off, and the session state machine every
// privileged call validates against.
package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// CallbackPath is the redirect path registered with the provider.
const CallbackPath = "/auth"

const (
	// listenerShutdownTimeout bounds how long a stopping listener
	// waits for the in-flight response write to finish.
	listenerShutdownTimeout = 5 * time.Second

	// listenerReadTimeout bounds header reads so a stalled connection
	// cannot pin the port.
	listenerReadTimeout = 10 * time.Second
)

// CallbackResult is the outcome of one authorization redirect. Either
// Code is set, or ErrMsg carries the provider's error description.
// Port identifies the listener that captured the redirect so the
// exchange can rebuild the redirect URI without touching shared state.
type CallbackResult struct {
	Code   string
	ErrMsg string
	Port   int
}

// OK reports whether the redirect carried an authorization code.
func (r CallbackResult) OK() bool { return r.ErrMsg == "" }

// Listener is an ephemeral local HTTP endpoint that captures exactly
// one authorization redirect and then shuts itself down. Browsers
// issue incidental requests (favicons and the like); anything not on
// the callback path gets a neutral 201 and leaves the listener alive.
type Listener struct {
	srv    *http.Server
	port   int
	sink   func(CallbackResult)
	logger *slog.Logger

	once sync.Once
	done chan struct{}
}

// StartListener binds localhost:port and serves the callback endpoint.
// The sink receives exactly one result per listener; delivery happens
// on the request-handler goroutine. Pass port 0 to let the kernel pick
// (tests).
func StartListener(port int, sink func(CallbackResult), logger *slog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding callback port %d: %w", port, err)
	}

	l := &Listener{
		port:   ln.Addr().(*net.TCPAddr).Port,
		sink:   sink,
		logger: logger,
		done:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, l.handleCallback)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	l.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: listenerReadTimeout,
	}

	go func() {
		defer close(l.done)

		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("callback listener failed", slog.String("error", err.Error()))
		}
	}()

	logger.Debug("callback listener started", slog.Int("port", l.port))

	return l, nil
}

// Port returns the bound local port.
func (l *Listener) Port() int { return l.port }

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = "Something went wrong!"
		}

		l.logger.Warn("authorization rejected",
			slog.String("error", errCode),
			slog.String("description", msg),
		)
		http.Error(w, msg, http.StatusInternalServerError)
		l.finish(CallbackResult{ErrMsg: msg})

		return
	}

	code := q.Get("code")
	if code == "" {
		msg := "redirect carried no authorization code"
		http.Error(w, msg, http.StatusInternalServerError)
		l.finish(CallbackResult{ErrMsg: msg})

		return
	}

	fmt.Fprint(w, "Success! You can close this browser window")
	l.finish(CallbackResult{Code: code})
}

// finish delivers the one-shot result and schedules shutdown. The
// shutdown runs on its own goroutine so the in-flight response write
// is flushed rather than aborted.
func (l *Listener) finish(res CallbackResult) {
	res.Port = l.port

	l.once.Do(func() {
		l.sink(res)
	})

	go l.shutdown()
}

func (l *Listener) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), listenerShutdownTimeout)
	defer cancel()

	_ = l.srv.Shutdown(ctx)
}

// Stop tears the listener down and releases the port. A stopped
// listener never delivers a result; starting a new authorization
// attempt or process teardown both go through here. Safe to call
// repeatedly and after the listener already self-terminated.
func (l *Listener) Stop() {
	// Burn the one-shot so a racing redirect cannot deliver into a
	// superseded attempt.
	l.once.Do(func() {})

	l.shutdown()
	<-l.done
}
