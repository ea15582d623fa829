// Package transport issues a single HTTP/1.0 GET over a raw TCP or TLS
// connection and exposes the response body as a stream.
//
// Only what the installer needs is implemented: one request line, a Host
// header, status line parsing and header skipping. Reads have no deadline;
// canceling the context passed to Open closes the connection.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/quantmind-br/upip/internal/core"
	"github.com/rs/zerolog"
)

const (
	schemeHTTPS = "https:"
	schemeHTTP  = "http:"

	defaultHTTPSPort = "443"
	defaultHTTPPort  = "80"

	maxHeaderLine = 8 << 10
)

// DialFunc opens a stream connection
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Transport opens URLs. The zero value is not usable; use New.
type Transport struct {
	log       *zerolog.Logger
	dial      DialFunc
	verifyTLS bool
	warned    bool
}

// Option configures a Transport
type Option func(*Transport)

// WithDialer replaces the network dialer
func WithDialer(dial DialFunc) Option {
	return func(t *Transport) {
		t.dial = dial
	}
}

// WithTLSVerification enables certificate validation
func WithTLSVerification(verify bool) Option {
	return func(t *Transport) {
		t.verifyTLS = verify
	}
}

// New creates a Transport
func New(log *zerolog.Logger, opts ...Option) *Transport {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	var d net.Dialer
	t := &Transport{
		log:  log,
		dial: d.DialContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Response is an open response body positioned after the header block
type Response struct {
	Status        int
	ContentLength int64 // -1 when the server sent none

	body io.Reader
	conn net.Conn
	ctx  context.Context
	stop func() bool
}

// Read implements io.Reader. After the Open context is canceled it returns
// the context's error.
func (r *Response) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err != nil && err != io.EOF { //nolint:errorlint // io.Reader contract
		if cerr := r.ctx.Err(); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}

// Close closes the connection
func (r *Response) Close() error {
	r.stop()
	return r.conn.Close()
}

type target struct {
	scheme string
	host   string // as written in the URL, used for the Host header
	addr   string // host:port to dial
	name   string // host without port, used for TLS SNI
	path   string
}

// parseURL splits scheme://host/path on its first three slashes
func parseURL(rawURL string) (*target, error) {
	parts := strings.SplitN(rawURL, "/", 4)
	if len(parts) < 3 || parts[1] != "" || parts[2] == "" {
		return nil, fmt.Errorf("malformed url %q", rawURL)
	}

	t := &target{scheme: parts[0], host: parts[2]}
	if len(parts) == 4 {
		t.path = parts[3]
	}

	var port string
	switch t.scheme {
	case schemeHTTPS:
		port = defaultHTTPSPort
	case schemeHTTP:
		port = defaultHTTPPort
	default:
		return nil, fmt.Errorf("unsupported scheme %q", strings.TrimSuffix(t.scheme, ":"))
	}

	if h, p, err := net.SplitHostPort(t.host); err == nil {
		t.name, t.addr = h, net.JoinHostPort(h, p)
	} else {
		t.name = strings.TrimSuffix(strings.TrimPrefix(t.host, "["), "]")
		t.addr = net.JoinHostPort(t.name, port)
	}
	return t, nil
}

// Open connects to the URL's host, sends a GET and returns the body of a 200
// response. A 404 is reported as core.KindNotFound; any other status, a
// connection failure or a malformed preamble as core.KindTransportFailure.
// The connection is closed when ctx is canceled, until Response.Close.
func (t *Transport) Open(ctx context.Context, rawURL string) (*Response, error) {
	tgt, err := parseURL(rawURL)
	if err != nil {
		return nil, core.NewError(core.KindTransportFailure, "get", err)
	}

	conn, err := t.dial(ctx, "tcp", tgt.addr)
	if err != nil {
		return nil, core.NewError(core.KindTransportFailure, "connect "+tgt.addr, err)
	}
	raw := conn
	stop := context.AfterFunc(ctx, func() { raw.Close() })

	if tgt.scheme == schemeHTTPS {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         tgt.name,
			InsecureSkipVerify: !t.verifyTLS, //nolint:gosec // validation is opt-in; a warning is logged
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			stop()
			conn.Close()
			return nil, core.NewError(core.KindTransportFailure, "tls handshake "+tgt.addr, err)
		}
		conn = tlsConn
		if !t.verifyTLS && !t.warned {
			t.log.Warn().Str("host", tgt.name).Msg("ssl certificate is not validated")
			t.warned = true
		}
	}

	resp, err := t.roundTrip(conn, tgt, rawURL)
	if err != nil {
		stop()
		conn.Close()
		if cerr := ctx.Err(); cerr != nil {
			return nil, core.NewError(core.KindTransportFailure, "get "+rawURL, cerr)
		}
		return nil, err
	}
	resp.ctx, resp.stop = ctx, stop
	return resp, nil
}

func (t *Transport) roundTrip(conn net.Conn, tgt *target, rawURL string) (*Response, error) {
	req := fmt.Sprintf("GET /%s HTTP/1.0\r\nHost: %s\r\n\r\n", tgt.path, tgt.host)
	if _, err := io.WriteString(conn, req); err != nil {
		return nil, core.NewError(core.KindTransportFailure, "send request", err)
	}

	br := bufio.NewReader(conn)
	line, err := readLine(br)
	if err != nil {
		return nil, core.NewError(core.KindTransportFailure, "read status line", err)
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return nil, core.Errorf(core.KindTransportFailure, "read status line", "malformed status line %q", line)
	}
	status := fields[1]

	t.log.Debug().Str("url", rawURL).Str("status", status).Msg("response received")

	switch status {
	case "200":
	case "404":
		return nil, &core.Error{Kind: core.KindNotFound, Op: "get " + rawURL, Status: status}
	default:
		return nil, &core.Error{Kind: core.KindTransportFailure, Op: "get " + rawURL, Status: status}
	}

	contentLength := int64(-1)
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, core.Errorf(core.KindTransportFailure, "read headers", "unexpected end of headers: %w", err)
		}
		if line == "" {
			break
		}
		if k, v, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "Content-Length") {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
				contentLength = n
			}
		}
	}

	var body io.Reader = br
	if contentLength >= 0 {
		body = io.LimitReader(br, contentLength)
	}
	return &Response{
		Status:        200,
		ContentLength: contentLength,
		body:          body,
		conn:          conn,
	}, nil
}

// readLine reads one header line without its CRLF or LF terminator. End of
// stream before a terminator is an error.
func readLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		frag, err := br.ReadSlice('\n')
		sb.Write(frag)
		if sb.Len() > maxHeaderLine {
			return "", fmt.Errorf("header line too long")
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull { //nolint:errorlint // sentinel from bufio
			continue
		}
		if err == io.EOF { //nolint:errorlint // io.Reader contract
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	line := strings.TrimSuffix(sb.String(), "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
