package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Adapts slog to retryablehttp, demoting ERROR to WARN since failures are retried.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

// Retries connection errors and 5xx responses a couple of times before giving up on a ping.
func newPingClient(logger *slog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger})
	retryClient.CheckRetry = retryablehttp.DefaultRetryPolicy

	client := retryClient.StandardClient()
	client.Timeout = 30 * time.Second
	return client
}

// Periodically fetches the daemon's own public URL; some hosts idle processes which see no inbound traffic.
type Pinger struct {
	logger   *slog.Logger
	client   *http.Client
	url      string
	interval time.Duration
}

func NewPinger(logger *slog.Logger, url string, interval time.Duration) *Pinger {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	logger = logger.With("system", "keepalive")
	return &Pinger{
		logger:   logger,
		client:   newPingClient(logger),
		url:      url,
		interval: interval,
	}
}

func (p *Pinger) Run(ctx context.Context) error {
	p.logger.Info("starting self-ping", "url", p.url, "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.ping(ctx); err != nil {
				keepalivePings.WithLabelValues("error").Inc()
				p.logger.Warn("self-ping failed", "err", err)
				continue
			}
			keepalivePings.WithLabelValues("ok").Inc()
		}
	}
}

func (p *Pinger) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "aguard-keepalive")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("self-ping: unexpected status %d", resp.StatusCode)
	}
	p.logger.Debug("self-ping ok", "status", resp.StatusCode)
	return nil
}
