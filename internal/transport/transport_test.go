package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/quantmind-br/upip/internal/core"
	"github.com/quantmind-br/upip/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// rawServer answers every connection with a canned response and records
// the request preamble it received.
func rawServer(t *testing.T, response string) (addr string, requests <-chan []string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	reqs := make(chan []string, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			br := bufio.NewReader(conn)
			var lines []string
			for {
				line, err := br.ReadString('\n')
				if err != nil {
					break
				}
				line = strings.TrimRight(line, "\r\n")
				if line == "" {
					break
				}
				lines = append(lines, line)
			}
			reqs <- lines
			io.WriteString(conn, response)
			conn.Close()
		}
	}()
	return ln.Addr().String(), reqs
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		addr    string
		host    string
		path    string
		wantErr bool
	}{
		{"https default port", "https://pypi.org/pypi/foo/json", "pypi.org:443", "pypi.org", "pypi/foo/json", false},
		{"http default port", "http://example.org/a/b.tar.gz", "example.org:80", "example.org", "a/b.tar.gz", false},
		{"explicit port", "http://127.0.0.1:8080/x", "127.0.0.1:8080", "127.0.0.1:8080", "x", false},
		{"no path", "https://example.org", "example.org:443", "example.org", "", false},
		{"ipv6 default port", "https://[::1]/x", "[::1]:443", "[::1]", "x", false},
		{"ipv6 explicit port", "http://[::1]:8080/x", "[::1]:8080", "[::1]:8080", "x", false},
		{"unsupported scheme", "ftp://example.org/x", "", "", "", true},
		{"missing host", "https:///x", "", "", "", true},
		{"not a url", "pypi.org", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, got.addr)
			assert.Equal(t, tt.host, got.host)
			assert.Equal(t, tt.path, got.path)
		})
	}
}

func TestOpen_RequestAndBody(t *testing.T) {
	var gotProto, gotHost, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProto, gotHost, gotPath = r.Proto, r.Host, r.URL.Path
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tr := New(nopLogger())
	resp, err := tr.Open(context.Background(), srv.URL+"/pypi/foo/json")
	require.NoError(t, err)
	defer resp.Close()

	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "HTTP/1.0", gotProto)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), gotHost)
	assert.Equal(t, "/pypi/foo/json", gotPath)
}

func TestOpen_LiteralRequest(t *testing.T) {
	addr, reqs := rawServer(t, "HTTP/1.0 200 OK\r\n\r\nbody")

	resp, err := New(nopLogger()).Open(context.Background(), "http://"+addr+"/pypi/x/json")
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, []string{"GET /pypi/x/json HTTP/1.0", "Host: " + addr}, <-reqs)
	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	assert.Equal(t, "body", string(body))
	assert.Equal(t, int64(-1), resp.ContentLength)
}

func TestOpen_StatusHandling(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   core.Kind
	}{
		{"not found", http.StatusNotFound, core.KindNotFound},
		{"server error", http.StatusInternalServerError, core.KindTransportFailure},
		{"redirect", http.StatusMovedPermanently, core.KindTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(nopLogger()).Open(context.Background(), srv.URL+"/x")
			require.Error(t, err)
			assert.Equal(t, tt.kind, core.KindOf(err))

			var cerr *core.Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, strconv.Itoa(tt.status), cerr.Status)
		})
	}
}

func TestOpen_PrematureEndOfHeaders(t *testing.T) {
	addr, _ := rawServer(t, "HTTP/1.0 200 OK\r\nContent-Type: application/json\r\n")

	_, err := New(nopLogger()).Open(context.Background(), "http://"+addr+"/x")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindTransportFailure))
	assert.Contains(t, err.Error(), "unexpected end of headers")
}

func TestOpen_MalformedStatusLine(t *testing.T) {
	addr, _ := rawServer(t, "garbage\r\n\r\n")

	_, err := New(nopLogger()).Open(context.Background(), "http://"+addr+"/x")
	assert.True(t, core.IsKind(err, core.KindTransportFailure))
}

func TestOpen_BareLFAndContentLength(t *testing.T) {
	addr, _ := rawServer(t, "HTTP/1.0 200 OK\nContent-Length: 5\n\nhello trailing junk")

	resp, err := New(nopLogger()).Open(context.Background(), "http://"+addr+"/x")
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, int64(5), resp.ContentLength)
	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestOpen_TLSWarningOncePerTransport(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "secure")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	tr := New(logging.NewTestLogger(&buf))

	for range 2 {
		resp, err := tr.Open(context.Background(), srv.URL+"/x")
		require.NoError(t, err)
		body, err := io.ReadAll(resp)
		require.NoError(t, err)
		assert.Equal(t, "secure", string(body))
		resp.Close()
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "ssl certificate is not validated"))

	// a second transport keeps its own warning state
	var other bytes.Buffer
	resp, err := New(logging.NewTestLogger(&other)).Open(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	resp.Close()
	assert.Equal(t, 1, strings.Count(other.String(), "ssl certificate is not validated"))
}

func TestOpen_TLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "secure")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	tr := New(logging.NewTestLogger(&buf), WithTLSVerification(true))

	_, err := tr.Open(context.Background(), srv.URL+"/x")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindTransportFailure))
	assert.NotContains(t, buf.String(), "ssl certificate is not validated")
}

func TestOpen_DialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	tr := New(nopLogger(), WithDialer(func(context.Context, string, string) (net.Conn, error) {
		return nil, dialErr
	}))

	_, err := tr.Open(context.Background(), "https://pypi.org/pypi/x/json")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindTransportFailure))
	assert.ErrorIs(t, err, dialErr)
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := New(nil).Open(context.Background(), "ftp://example.org/x")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindTransportFailure))
	assert.Contains(t, err.Error(), "unsupported scheme")
}

// stallServer sends preamble on every connection and then keeps it open
// without writing anything else
func stallServer(t *testing.T, preamble string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		ln.Close()
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.WriteString(conn, preamble)
				<-done
			}()
		}
	}()
	return ln.Addr().String()
}

func TestOpen_CancelDuringBodyRead(t *testing.T) {
	addr := stallServer(t, "HTTP/1.0 200 OK\r\n\r\npartial")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, err := New(nopLogger()).Open(ctx, "http://"+addr+"/x")
	require.NoError(t, err)
	defer resp.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(resp)
		errc <- err
	}()

	time.AfterFunc(50*time.Millisecond, cancel)
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("body read did not return after cancel")
	}
}

func TestOpen_CancelDuringHeaders(t *testing.T) {
	addr := stallServer(t, "HTTP/1.0 200 OK\r\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		_, err := New(nopLogger()).Open(ctx, "http://"+addr+"/x")
		errc <- err
	}()

	time.AfterFunc(50*time.Millisecond, cancel)
	select {
	case err := <-errc:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, core.IsKind(err, core.KindTransportFailure))
	case <-time.After(5 * time.Second):
		t.Fatal("open did not return after cancel")
	}
}

func TestResponse_CloseReleasesContext(t *testing.T) {
	addr, _ := rawServer(t, "HTTP/1.0 200 OK\r\n\r\nbody")

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := New(nopLogger()).Open(ctx, "http://"+addr+"/x")
	require.NoError(t, err)
	require.NoError(t, resp.Close())

	// the cancel hook was released by Close
	assert.False(t, resp.stop())
	cancel()
}
