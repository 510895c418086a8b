package gena

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/upnpd/pkg/supervise"
)

const (
	chunkSize    = 32 << 10
	acceptPoll   = time.Second
	eventNT      = "upnp:event"
	xmlMimeType  = `text/xml; charset="utf-8"`
	textMimeType = "text/plain"
)

// ServerConfig holds eventing server settings.
type ServerConfig struct {
	// Host is the address to bind; empty binds all IPv4 interfaces.
	Host string

	// BasePort is the first port tried. Zero lets the kernel pick one.
	BasePort int

	// PortAttempts bounds the search for a free port starting at BasePort.
	PortAttempts int

	// IOTimeout bounds every read and write on a connection.
	IOTimeout time.Duration

	// SubscriptionTimeout is advertised in SUBSCRIBE responses.
	SubscriptionTimeout time.Duration

	MaxHeaderBytes int64
	MaxBodyBytes   int64
}

// DefaultServerConfig returns the standard settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		BasePort:            49152,
		PortAttempts:        100,
		IOTimeout:           5 * time.Second,
		SubscriptionTimeout: 1800 * time.Second,
		MaxHeaderBytes:      16 << 10,
		MaxBodyBytes:        1 << 20,
	}
}

func (c *ServerConfig) applyDefaults() {
	d := DefaultServerConfig()
	if c.PortAttempts <= 0 {
		c.PortAttempts = d.PortAttempts
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = d.IOTimeout
	}
	if c.SubscriptionTimeout <= 0 {
		c.SubscriptionTimeout = d.SubscriptionTimeout
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
}

// Server is the eventing HTTP server.
type Server struct {
	cfg      ServerConfig
	provider Provider
	sink     Sink
	ln       *net.TCPListener

	ctx    context.Context
	cancel context.CancelFunc
	worker *supervise.Worker

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer binds the first free port from cfg.BasePort and starts accepting.
// provider and sink may be nil; the corresponding requests then get 404 or 501.
func NewServer(cfg ServerConfig, provider Provider, sink Sink) (*Server, error) {
	cfg.applyDefaults()

	ln, err := listen(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		provider: provider,
		sink:     sink,
		ln:       ln,
		ctx:      ctx,
		cancel:   cancel,
		worker:   supervise.New("gena-accept"),
		conns:    make(map[net.Conn]struct{}),
	}
	if err := s.worker.Start(ctx, s.acceptLoop); err != nil {
		cancel()
		ln.Close()
		return nil, err
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("Eventing server listening")
	return s, nil
}

func listen(cfg ServerConfig) (*net.TCPListener, error) {
	attempts := cfg.PortAttempts
	if cfg.BasePort == 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		port := cfg.BasePort
		if port != 0 {
			port += i
		}
		addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		ln, err := net.Listen("tcp4", addr)
		if err == nil {
			return ln.(*net.TCPListener), nil
		}
		lastErr = err
		log.Debug().Err(err).Str("addr", addr).Msg("Port busy, trying next")
	}
	return nil, fmt.Errorf("no free port from %d after %d attempts: %w", cfg.BasePort, attempts, lastErr)
}

// Port is the bound TCP port.
func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// Addr is the bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Close stops accepting, closes open connections and waits for their handlers.
func (s *Server) Close() error {
	s.cancel()
	err := s.ln.Close()
	s.worker.Stop()

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Info().Msg("Eventing server stopped")
	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.ln.SetDeadline(time.Now().Add(acceptPoll)); err != nil {
			log.Debug().Err(err).Msg("Set accept deadline failed")
		}
		c, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("Accept failed")
			continue
		}

		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(ctx, c)
	}
}

func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("remote", c.RemoteAddr().String()).Msg("Connection handler panicked")
		}
		c.Close()

		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.wg.Done()
	}()

	dc := &deadlineConn{Conn: c, timeout: s.cfg.IOTimeout}
	lr := &io.LimitedReader{R: dc, N: s.cfg.MaxHeaderBytes}
	br := bufio.NewReader(lr)

	req, err := readRequest(br)
	if errors.Is(err, errBadRequestLine) {
		log.Debug().Err(err).Str("remote", c.RemoteAddr().String()).Msg("Dropping connection")
		return
	}

	w := &responseWriter{w: dc}
	if err != nil {
		log.Debug().Err(err).Str("remote", c.RemoteAddr().String()).Msg("Bad request")
		w.status(http.StatusBadRequest)
		return
	}

	log.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Str("remote", c.RemoteAddr().String()).
		Msg("Eventing request")

	switch req.method {
	case "GET", "HEAD":
		s.serveResource(w, req)
	case "SUBSCRIBE":
		s.subscribe(ctx, w, req)
	case "UNSUBSCRIBE":
		s.unsubscribe(ctx, w, req)
	case "POST":
		lr.N = s.cfg.MaxBodyBytes
		s.action(ctx, w, req, br)
	default:
		w.status(http.StatusNotImplemented)
	}
}

func (s *Server) serveResource(w *responseWriter, req *request) {
	if s.provider == nil {
		w.status(http.StatusNotFound)
		return
	}
	info, err := s.provider.Info(req.path)
	if err != nil {
		log.Debug().Err(err).Str("path", req.path).Msg("Resource not found")
		w.status(http.StatusNotFound)
		return
	}
	f, err := s.provider.Open(req.path, OpenRead)
	if err != nil {
		log.Debug().Err(err).Str("path", req.path).Msg("Resource open failed")
		w.status(http.StatusInternalServerError)
		return
	}
	res := &Resource{File: f, Info: info}
	defer res.Close()

	rng := ParseRange(req.header.Get("Range"), res.Info.Size)
	code := http.StatusOK
	if rng.Partial {
		code = http.StatusPartialContent
	}

	mime := res.Info.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	modTime := res.Info.ModTime
	if modTime.IsZero() {
		modTime = time.Now()
	}

	h := header{
		{"Content-Type", mime},
		{"Accept-Ranges", "bytes"},
		{"Last-Modified", modTime.UTC().Format(http.TimeFormat)},
		{"Content-Length", strconv.FormatInt(rng.Length(), 10)},
	}
	if rng.Partial {
		h = append(h, [2]string{"Content-Range", rng.ContentRange()})
	}
	if err := w.head(code, h); err != nil || req.method == "HEAD" {
		return
	}

	if _, err := res.SeekTo(rng.Start); err != nil {
		log.Debug().Err(err).Str("path", req.path).Msg("Seek failed")
		return
	}

	buf := make([]byte, chunkSize)
	remaining := rng.Length()
	for remaining > 0 {
		n, err := res.Read(buf[:min(remaining, int64(len(buf)))])
		if n > 0 {
			if _, werr := w.w.Write(buf[:n]); werr != nil {
				log.Debug().Err(werr).Str("path", req.path).Msg("Transfer aborted")
				return
			}
			remaining -= int64(n)
		}
		if err != nil {
			if remaining > 0 {
				log.Debug().Err(err).Str("path", req.path).Int64("remaining", remaining).Msg("Transfer aborted")
			}
			return
		}
	}
}

func (s *Server) subscribe(ctx context.Context, w *responseWriter, req *request) {
	nt := req.header.Get("NT")
	sid := req.header.Get("SID")
	callback := req.header.Get("CALLBACK")

	if nt != "" {
		if sid != "" {
			w.status(http.StatusBadRequest)
			return
		}
		if nt != eventNT || callback == "" {
			w.status(http.StatusPreconditionFailed)
			return
		}
	} else if sid == "" {
		w.status(http.StatusPreconditionFailed)
		return
	}

	if s.sink == nil {
		w.status(http.StatusNotImplemented)
		return
	}

	ev := SubscribeRequest{
		Path:     req.path,
		Host:     req.header.Get("HOST"),
		NT:       nt,
		Callback: callback,
		SID:      sid,
		Timeout:  req.header.Get("TIMEOUT"),
	}
	reply, err := s.sink.HandleEvent(ctx, ev)
	if err != nil {
		log.Debug().Err(err).Str("path", req.path).Msg("Subscribe rejected")
		w.fail(err)
		return
	}
	if reply != nil && reply.SID != "" {
		sid = reply.SID
	}
	if sid == "" {
		w.status(http.StatusInternalServerError)
		return
	}

	h := header{
		{"Content-Type", textMimeType},
		{"SID", sid},
		{"TIMEOUT", fmt.Sprintf("Second-%d", int(s.cfg.SubscriptionTimeout/time.Second))},
		{"Content-Length", "0"},
	}
	if err := w.head(http.StatusOK, h); err != nil {
		log.Debug().Err(err).Str("sid", sid).Msg("Subscribe response not delivered")
		return
	}

	accepted := SubscribeAccepted{
		Path:     req.path,
		SID:      sid,
		Callback: callback,
		Renewal:  ev.Renewal(),
	}
	if _, err := s.sink.HandleEvent(ctx, accepted); err != nil {
		log.Warn().Err(err).Str("sid", sid).Msg("Subscription acceptance failed")
	}
}

func (s *Server) unsubscribe(ctx context.Context, w *responseWriter, req *request) {
	host := req.header.Get("HOST")
	sid := req.header.Get("SID")
	if host == "" || sid == "" {
		w.status(http.StatusInternalServerError)
		return
	}
	if s.sink == nil {
		w.status(http.StatusNotImplemented)
		return
	}

	if _, err := s.sink.HandleEvent(ctx, Unsubscribe{Path: req.path, Host: host, SID: sid}); err != nil {
		log.Debug().Err(err).Str("sid", sid).Msg("Unsubscribe failed")
		w.status(http.StatusInternalServerError)
		return
	}
	w.status(http.StatusOK)
}

func (s *Server) action(ctx context.Context, w *responseWriter, req *request, body io.Reader) {
	host := req.header.Get("HOST")
	soapAction := req.header.Get("SOAPACTION")
	length, err := strconv.ParseInt(req.header.Get("Content-Length"), 10, 64)
	if host == "" || soapAction == "" || err != nil || length <= 0 || length > s.cfg.MaxBodyBytes {
		w.status(http.StatusBadRequest)
		return
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(body, buf); err != nil {
		log.Debug().Err(err).Int64("content_length", length).Msg("Short action body")
		w.status(http.StatusBadRequest)
		return
	}

	serviceType, actionName, ok := strings.Cut(strings.Trim(strings.TrimSpace(soapAction), `"`), "#")
	if !ok {
		w.status(http.StatusPreconditionFailed)
		return
	}
	if s.sink == nil {
		w.status(http.StatusNotImplemented)
		return
	}

	ev := ActionRequest{
		Path:        req.path,
		Host:        host,
		ServiceType: serviceType,
		ActionName:  actionName,
		Body:        buf,
	}
	reply, err := s.sink.HandleEvent(ctx, ev)
	if err != nil {
		log.Debug().Err(err).Str("action", actionName).Msg("Action failed")
		var fault Fault
		if errors.As(err, &fault) {
			w.body(http.StatusInternalServerError, xmlMimeType, fault.FaultBody())
			return
		}
		w.fail(err)
		return
	}

	var out []byte
	if reply != nil {
		out = reply.Body
	}
	w.body(http.StatusOK, xmlMimeType, out)
}

type header [][2]string

// responseWriter emits HTTP/1.1 responses; every response carries
// Content-Type, Date and Connection: close.
type responseWriter struct {
	w io.Writer
}

func (rw *responseWriter) head(code int, h header) error {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", code, http.StatusText(code))
	hasType := false
	for _, kv := range h {
		if strings.EqualFold(kv[0], "Content-Type") {
			hasType = true
		}
		b.WriteString(kv[0] + ": " + kv[1] + "\r\n")
	}
	if !hasType {
		b.WriteString("Content-Type: " + textMimeType + "\r\n")
	}
	b.WriteString("Date: " + time.Now().UTC().Format(http.TimeFormat) + "\r\n")
	b.WriteString("Connection: close\r\n\r\n")

	_, err := io.WriteString(rw.w, b.String())
	return err
}

func (rw *responseWriter) body(code int, mime string, data []byte) {
	h := header{
		{"Content-Type", mime},
		{"Content-Length", strconv.Itoa(len(data))},
	}
	if err := rw.head(code, h); err != nil {
		return
	}
	if len(data) > 0 {
		if _, err := rw.w.Write(data); err != nil {
			log.Debug().Err(err).Msg("Response body not delivered")
		}
	}
}

func (rw *responseWriter) status(code int) {
	rw.body(code, textMimeType, nil)
}

func (rw *responseWriter) fail(err error) {
	if errors.Is(err, ErrPreconditionFailed) {
		rw.status(http.StatusPreconditionFailed)
		return
	}
	rw.status(http.StatusInternalServerError)
}

// deadlineConn bounds every Read and Write by timeout.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
