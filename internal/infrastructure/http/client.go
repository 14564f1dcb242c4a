package infrastructure

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
)

// NewTransport builds a pooled HTTP transport tuned for many small concurrent
// provider calls.
func NewTransport(cfg *config.Config) *http.Transport {
	return &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: false,
		},
		DisableKeepAlives: false,
		ForceAttemptHTTP2: true,
	}
}

// NewClient creates an HTTP client over the pooled transport.
func NewClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Transport: NewTransport(cfg),
		Timeout:   cfg.HTTPClientTimeout,
	}
}
