// Package transport delivers reports to the collector as a single HTTP/1.1
// POST over a fresh TCP connection. The response is not read.
package transport

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/coreprobe/internal/logger"
	"github.com/zeebo/blake3"
)

const (
	// DigestHeader carries the hex BLAKE3-256 digest of the request body.
	DigestHeader = "X-Content-Blake3"

	defaultRetries        = 3
	defaultRetryDelay     = 2 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

type Config struct {
	Server         string
	Codec          string
	Compression    string
	Retries        int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type Client struct {
	server         string
	codec          Codec
	compression    string
	compress       compressor
	retries        int
	retryDelay     time.Duration
	connectTimeout time.Duration
	dial           dialFunc
	log            logger.Logger
}

func New(cfg Config) (*Client, error) {
	if _, _, err := net.SplitHostPort(cfg.Server); err != nil {
		return nil, errFactory.Wrap(ErrInvalidServer, err)
	}

	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	compress, err := newCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	c := &Client{
		server:         cfg.Server,
		codec:          codec,
		compression:    cfg.Compression,
		compress:       compress,
		retries:        cfg.Retries,
		retryDelay:     cfg.RetryDelay,
		connectTimeout: cfg.ConnectTimeout,
		log:            logger.WithComponent("transport"),
	}
	if c.retries < 1 {
		c.retries = defaultRetries
	}
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = defaultConnectTimeout
	}

	dialer := &net.Dialer{Timeout: c.connectTimeout}
	c.dial = dialer.DialContext

	return c, nil
}

// Send encodes v and posts it, retrying up to the configured number of
// attempts. It stops early when ctx is cancelled.
func (c *Client) Send(ctx context.Context, v any) error {
	body, err := c.codec.Marshal(v)
	if err != nil {
		return errFactory.Wrap(ErrEncodeFailed, err)
	}

	header := http.Header{}
	header.Set("Content-Type", c.codec.ContentType())

	if c.compress != nil {
		if body, err = c.compress(body); err != nil {
			return errFactory.Wrap(ErrCompressFailed, err)
		}
		header.Set("Content-Encoding", c.compression)
	}

	digest := blake3.Sum256(body)
	header.Set(DigestHeader, hex.EncodeToString(digest[:]))

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return errFactory.Wrap(ErrSendCancelled, err)
		}

		lastErr = c.post(ctx, body, header)
		if lastErr == nil {
			c.log.Debug().
				Str("server", c.server).
				Int("bytes", len(body)).
				Int("attempt", attempt).
				Msg("Report sent")
			return nil
		}

		c.log.Warn().
			Err(lastErr).
			Str("server", c.server).
			Int("attempt", attempt).
			Int("retries", c.retries).
			Msg("Failed to send report")

		if attempt == c.retries {
			break
		}

		select {
		case <-ctx.Done():
			return errFactory.Wrap(ErrSendCancelled, ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}

	return errFactory.Wrap(ErrSendFailed, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte, header http.Header) error {
	conn, err := c.dial(ctx, "tcp", c.server)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.connectTimeout)); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+c.server+"/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header = header.Clone()
	req.Close = true

	return req.Write(conn)
}
