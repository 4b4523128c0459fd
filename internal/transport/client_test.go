package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/coreprobe/internal/errors"
	"codeberg.org/mutker/coreprobe/internal/readings"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

type received struct {
	req  *http.Request
	body []byte
}

// listen accepts one connection and parses the request written to it.
func listen(t *testing.T) (string, <-chan received) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan received, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		req, err := http.ReadRequest(bufio.NewReader(conn))
		if err != nil {
			return
		}
		body, _ := io.ReadAll(req.Body)
		ch <- received{req: req, body: body}
	}()

	return ln.Addr().String(), ch
}

func wait(t *testing.T, ch <-chan received) received {
	t.Helper()

	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no request received")
		return received{}
	}
}

func sampleReport() readings.SensorReport {
	return readings.SensorReport{
		ReportID:    "3f0e7c1a-0000-4000-8000-000000000001",
		CollectedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Host:        readings.HostSnapshot{Hostname: "node-1", ManagementIP: "10.0.0.1"},
		Packages: []readings.PackageReading{{
			ID:          "0",
			Adapter:     "coretemp-isa-0000",
			Temperature: 45,
			Cores:       []readings.CoreReading{{Name: "Core-0", Temperature: 42}},
		}},
	}
}

func TestSendJSON(t *testing.T) {
	addr, ch := listen(t)
	c, err := New(Config{Server: addr})
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), sampleReport()))

	r := wait(t, ch)
	assert.Equal(t, http.MethodPost, r.req.Method)
	assert.Equal(t, "/", r.req.URL.Path)
	assert.Equal(t, "application/json", r.req.Header.Get("Content-Type"))
	assert.Empty(t, r.req.Header.Get("Content-Encoding"))
	assert.Equal(t, int64(len(r.body)), r.req.ContentLength)

	digest := blake3.Sum256(r.body)
	assert.Equal(t, hex.EncodeToString(digest[:]), r.req.Header.Get(DigestHeader))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(r.body, &decoded))
	assert.Equal(t, "3f0e7c1a-0000-4000-8000-000000000001", decoded["report_id"])
	packages := decoded["cpu_packages"].([]any)
	require.Len(t, packages, 1)
	assert.Equal(t, "coretemp-isa-0000", packages[0].(map[string]any)["adapter_name"])
}

func TestSendCBORCompressed(t *testing.T) {
	decoders := map[string]func([]byte) ([]byte, error){
		CompressionGzip: func(b []byte) ([]byte, error) {
			r, err := gzip.NewReader(bytes.NewReader(b))
			if err != nil {
				return nil, err
			}
			return io.ReadAll(r)
		},
		CompressionZstd: func(b []byte) ([]byte, error) {
			d, err := zstd.NewReader(nil)
			if err != nil {
				return nil, err
			}
			defer d.Close()
			return d.DecodeAll(b, nil)
		},
		CompressionLZ4: func(b []byte) ([]byte, error) {
			return io.ReadAll(lz4.NewReader(bytes.NewReader(b)))
		},
	}

	for name, decode := range decoders {
		t.Run(name, func(t *testing.T) {
			addr, ch := listen(t)
			c, err := New(Config{Server: addr, Codec: "cbor", Compression: name})
			require.NoError(t, err)

			require.NoError(t, c.Send(context.Background(), sampleReport()))

			r := wait(t, ch)
			assert.Equal(t, "application/cbor", r.req.Header.Get("Content-Type"))
			assert.Equal(t, name, r.req.Header.Get("Content-Encoding"))

			digest := blake3.Sum256(r.body)
			assert.Equal(t, hex.EncodeToString(digest[:]), r.req.Header.Get(DigestHeader))

			plain, err := decode(r.body)
			require.NoError(t, err)

			var decoded readings.SensorReport
			require.NoError(t, cbor.Unmarshal(plain, &decoded))
			want := sampleReport()
			assert.Equal(t, want.ReportID, decoded.ReportID)
			assert.True(t, want.CollectedAt.Equal(decoded.CollectedAt))
			assert.Equal(t, want.Host.Hostname, decoded.Host.Hostname)
			assert.Equal(t, want.Packages, decoded.Packages)
		})
	}
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	addr, ch := listen(t)
	c, err := New(Config{Server: addr, Retries: 3, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	var attempts atomic.Int32
	dialer := &net.Dialer{}
	c.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		if attempts.Add(1) < 3 {
			return nil, fmt.Errorf("connection refused")
		}
		return dialer.DialContext(ctx, network, address)
	}

	require.NoError(t, c.Send(context.Background(), sampleReport()))
	wait(t, ch)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSendGivesUpAfterRetries(t *testing.T) {
	c, err := New(Config{Server: "127.0.0.1:1", Retries: 2, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	var attempts atomic.Int32
	c.dial = func(context.Context, string, string) (net.Conn, error) {
		attempts.Add(1)
		return nil, fmt.Errorf("connection refused")
	}

	err = c.Send(context.Background(), sampleReport())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrSendFailed))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSendStopsWhenCancelled(t *testing.T) {
	c, err := New(Config{Server: "127.0.0.1:1", Retries: 5, RetryDelay: time.Hour})
	require.NoError(t, err)
	c.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, fmt.Errorf("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	err = c.Send(ctx, sampleReport())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrSendCancelled))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Server: "no-port"})
	assert.True(t, errors.HasCode(err, ErrInvalidServer))

	_, err = New(Config{Server: "127.0.0.1:5000", Codec: "xml"})
	assert.True(t, errors.HasCode(err, ErrInvalidCodec))

	_, err = New(Config{Server: "127.0.0.1:5000", Compression: "brotli"})
	assert.True(t, errors.HasCode(err, ErrInvalidCompression))
}
