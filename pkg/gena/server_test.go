package gena

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProvider struct {
	files map[string][]byte
	fail  map[string]bool
}

func (p *memProvider) Info(path string) (FileInfo, error) {
	data, ok := p.files[path]
	if !ok {
		return FileInfo{}, ErrNotFound
	}
	return FileInfo{Size: int64(len(data)), MimeType: "audio/mpeg", ModTime: time.Unix(0, 0)}, nil
}

func (p *memProvider) Open(path string, _ OpenMode) (File, error) {
	if p.fail[path] {
		return nil, fmt.Errorf("open %s: permission denied", path)
	}
	return NewVirtualFile(p.files[path]), nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	handle func(ev Event) (*Reply, error)
}

func (s *recordingSink) HandleEvent(_ context.Context, ev Event) (*Reply, error) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	if s.handle != nil {
		return s.handle(ev)
	}
	return &Reply{}, nil
}

func (s *recordingSink) recorded() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

type soapFault struct{}

func (soapFault) Error() string     { return "invalid action" }
func (soapFault) FaultBody() []byte { return []byte("<fault/>") }

func newTestServer(t *testing.T, p Provider, sink Sink) *Server {
	t.Helper()

	s, err := NewServer(ServerConfig{Host: "127.0.0.1", IOTimeout: 2 * time.Second}, p, sink)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// roundTrip writes raw to the server and parses the response.
func roundTrip(t *testing.T, s *Server, raw string) (*http.Response, string) {
	t.Helper()

	c, err := net.Dial("tcp4", s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = io.WriteString(c, raw)
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(c), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_GetWhole(t *testing.T) {
	p := &memProvider{files: map[string][]byte{"/song.mp3": []byte("0123456789")}}
	s := newTestServer(t, p, nil)

	resp, body := roundTrip(t, s, "GET /song.mp3 HTTP/1.1\r\nHOST: x\r\n\r\n")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0123456789", body)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.NotEmpty(t, resp.Header.Get("Date"))
	assert.NotEmpty(t, resp.Header.Get("Last-Modified"))
	assert.Empty(t, resp.Header.Get("Content-Range"))
}

func TestServer_GetRange(t *testing.T) {
	p := &memProvider{files: map[string][]byte{"/song.mp3": []byte("0123456789")}}
	s := newTestServer(t, p, nil)

	resp, body := roundTrip(t, s, "GET /song.mp3 HTTP/1.1\r\nRange: bytes=2-5\r\n\r\n")

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "2345", body)
	assert.Equal(t, "bytes 2-5/10", resp.Header.Get("Content-Range"))
	assert.Equal(t, int64(4), resp.ContentLength)
}

func TestServer_GetInvertedRangeServesWhole(t *testing.T) {
	p := &memProvider{files: map[string][]byte{"/song.mp3": []byte("0123456789")}}
	s := newTestServer(t, p, nil)

	resp, body := roundTrip(t, s, "GET /song.mp3 HTTP/1.1\r\nRange: bytes=5-2\r\n\r\n")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0123456789", body)
}

func TestServer_GetLargeResourceChunked(t *testing.T) {
	data := []byte(strings.Repeat("abcdefgh", 20000))
	p := &memProvider{files: map[string][]byte{"/big": data}}
	s := newTestServer(t, p, nil)

	resp, body := roundTrip(t, s, "GET /big HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, len(data), len(body))
}

func TestServer_Head(t *testing.T) {
	p := &memProvider{files: map[string][]byte{"/song.mp3": []byte("0123456789")}}
	s := newTestServer(t, p, nil)

	c, err := net.Dial("tcp4", s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = io.WriteString(c, "HEAD /song.mp3 HTTP/1.1\r\n\r\n")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodHead, "/song.mp3", nil)
	resp, err := http.ReadResponse(bufio.NewReader(c), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(10), resp.ContentLength)
}

func TestServer_GetStatusCodes(t *testing.T) {
	p := &memProvider{
		files: map[string][]byte{"/locked": []byte("x")},
		fail:  map[string]bool{"/locked": true},
	}
	s := newTestServer(t, p, nil)

	resp, _ := roundTrip(t, s, "GET /missing HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = roundTrip(t, s, "GET /locked HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_VendorEscapedPath(t *testing.T) {
	p := &memProvider{files: map[string][]byte{"/a,b-c": []byte("ok")}}
	s := newTestServer(t, p, nil)

	resp, body := roundTrip(t, s, "GET /a%2Mb%2Nc HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestServer_UnknownMethod(t *testing.T) {
	s := newTestServer(t, nil, nil)

	resp, _ := roundTrip(t, s, "DELETE /x HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("Date"))
}

func TestServer_UnparsableRequestLineDropped(t *testing.T) {
	s := newTestServer(t, nil, nil)

	c, err := net.Dial("tcp4", s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = io.WriteString(c, "garbage\r\n\r\n")
	require.NoError(t, err)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	data, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestServer_SubscribeInitial(t *testing.T) {
	sink := &recordingSink{handle: func(ev Event) (*Reply, error) {
		if _, ok := ev.(SubscribeRequest); ok {
			return &Reply{SID: "uuid:1234"}, nil
		}
		return nil, nil
	}}
	s := newTestServer(t, nil, sink)

	resp, _ := roundTrip(t, s, "SUBSCRIBE /svc/Event HTTP/1.1\r\nHOST: h\r\nNT: upnp:event\r\nCALLBACK: <http://127.0.0.1:9/cb>\r\nTIMEOUT: Second-300\r\n\r\n")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "uuid:1234", resp.Header.Get("SID"))
	assert.Equal(t, "Second-1800", resp.Header.Get("TIMEOUT"))

	assert.Eventually(t, func() bool { return len(sink.recorded()) == 2 }, 2*time.Second, 10*time.Millisecond)
	events := sink.recorded()

	req, ok := events[0].(SubscribeRequest)
	require.True(t, ok)
	assert.Equal(t, "/svc/Event", req.Path)
	assert.Equal(t, "<http://127.0.0.1:9/cb>", req.Callback)
	assert.False(t, req.Renewal())

	acc, ok := events[1].(SubscribeAccepted)
	require.True(t, ok)
	assert.Equal(t, "uuid:1234", acc.SID)
	assert.False(t, acc.Renewal)
}

func TestServer_SubscribeValidation(t *testing.T) {
	sink := &recordingSink{}
	s := newTestServer(t, nil, sink)

	tests := []struct {
		name    string
		headers string
		want    int
	}{
		{"nt and sid", "NT: upnp:event\r\nSID: uuid:1\r\nCALLBACK: <http://h/>\r\n", http.StatusBadRequest},
		{"wrong nt", "NT: upnp:other\r\nCALLBACK: <http://h/>\r\n", http.StatusPreconditionFailed},
		{"no callback", "NT: upnp:event\r\n", http.StatusPreconditionFailed},
		{"renewal without sid", "TIMEOUT: Second-1800\r\n", http.StatusPreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := roundTrip(t, s, "SUBSCRIBE /svc/Event HTTP/1.1\r\nHOST: h\r\n"+tt.headers+"\r\n")
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Empty(t, sink.recorded())
}

func TestServer_SubscribeSinkErrors(t *testing.T) {
	sink := &recordingSink{handle: func(ev Event) (*Reply, error) {
		req := ev.(SubscribeRequest)
		if req.Renewal() {
			return nil, fmt.Errorf("unknown sid: %w", ErrPreconditionFailed)
		}
		return nil, fmt.Errorf("boom")
	}}
	s := newTestServer(t, nil, sink)

	resp, _ := roundTrip(t, s, "SUBSCRIBE /svc HTTP/1.1\r\nSID: uuid:gone\r\n\r\n")
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp, _ = roundTrip(t, s, "SUBSCRIBE /svc HTTP/1.1\r\nNT: upnp:event\r\nCALLBACK: <http://h/>\r\n\r\n")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_SubscribeRenewal(t *testing.T) {
	sink := &recordingSink{}
	s := newTestServer(t, nil, sink)

	resp, _ := roundTrip(t, s, "SUBSCRIBE /svc HTTP/1.1\r\nHOST: h\r\nSID: uuid:abc\r\n\r\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "uuid:abc", resp.Header.Get("SID"))

	assert.Eventually(t, func() bool { return len(sink.recorded()) == 2 }, 2*time.Second, 10*time.Millisecond)
	acc := sink.recorded()[1].(SubscribeAccepted)
	assert.True(t, acc.Renewal)
}

func TestServer_Unsubscribe(t *testing.T) {
	sink := &recordingSink{handle: func(ev Event) (*Reply, error) {
		if ev.(Unsubscribe).SID == "uuid:bad" {
			return nil, ErrPreconditionFailed
		}
		return nil, nil
	}}
	s := newTestServer(t, nil, sink)

	resp, _ := roundTrip(t, s, "UNSUBSCRIBE /svc HTTP/1.1\r\nHOST: h\r\nSID: uuid:ok\r\n\r\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = roundTrip(t, s, "UNSUBSCRIBE /svc HTTP/1.1\r\nHOST: h\r\nSID: uuid:bad\r\n\r\n")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = roundTrip(t, s, "UNSUBSCRIBE /svc HTTP/1.1\r\nHOST: h\r\n\r\n")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_UnsubscribeWithoutSink(t *testing.T) {
	s := newTestServer(t, nil, nil)

	resp, _ := roundTrip(t, s, "UNSUBSCRIBE /svc HTTP/1.1\r\nHOST: h\r\nSID: uuid:ok\r\n\r\n")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func postAction(soapAction, body string) string {
	return "POST /svc/control HTTP/1.1\r\nHOST: h\r\n" +
		fmt.Sprintf("CONTENT-LENGTH: %d\r\n", len(body)) +
		"SOAPACTION: " + soapAction + "\r\n\r\n" + body
}

func TestServer_Action(t *testing.T) {
	sink := &recordingSink{handle: func(ev Event) (*Reply, error) {
		return &Reply{Body: []byte("<ok/>")}, nil
	}}
	s := newTestServer(t, nil, sink)

	resp, body := roundTrip(t, s, postAction(`"urn:schemas-upnp-org:service:ContentDirectory:1#Browse"`, "<Envelope/>"))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<ok/>", body)
	assert.Equal(t, `text/xml; charset="utf-8"`, resp.Header.Get("Content-Type"))

	events := sink.recorded()
	require.Len(t, events, 1)
	act := events[0].(ActionRequest)
	assert.Equal(t, "urn:schemas-upnp-org:service:ContentDirectory:1", act.ServiceType)
	assert.Equal(t, "Browse", act.ActionName)
	assert.Equal(t, "<Envelope/>", string(act.Body))
}

func TestServer_ActionErrors(t *testing.T) {
	sink := &recordingSink{handle: func(ev Event) (*Reply, error) {
		if ev.(ActionRequest).ActionName == "Fault" {
			return nil, soapFault{}
		}
		return nil, fmt.Errorf("boom")
	}}
	s := newTestServer(t, nil, sink)

	resp, _ := roundTrip(t, s, postAction(`"urn:x#Other"`, "<b/>"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, body := roundTrip(t, s, postAction(`"urn:x#Fault"`, "<b/>"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "<fault/>", body)

	resp, _ = roundTrip(t, s, postAction(`"urn:x-no-hash"`, "<b/>"))
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp, _ = roundTrip(t, s, "POST /svc/control HTTP/1.1\r\nHOST: h\r\nSOAPACTION: \"a#b\"\r\n\r\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ActionShortBody(t *testing.T) {
	s := newTestServer(t, nil, &recordingSink{})

	c, err := net.Dial("tcp4", s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = io.WriteString(c, "POST /svc HTTP/1.1\r\nHOST: h\r\nCONTENT-LENGTH: 100\r\nSOAPACTION: \"a#b\"\r\n\r\nshort")
	require.NoError(t, err)
	require.NoError(t, c.(*net.TCPConn).CloseWrite())

	resp, err := http.ReadResponse(bufio.NewReader(c), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_PortSearch(t *testing.T) {
	first, err := NewServer(ServerConfig{Host: "127.0.0.1"}, nil, nil)
	require.NoError(t, err)
	defer first.Close()

	second, err := NewServer(ServerConfig{Host: "127.0.0.1", BasePort: first.Port(), PortAttempts: 20}, nil, nil)
	require.NoError(t, err)
	defer second.Close()

	assert.Greater(t, second.Port(), first.Port())
}

func TestServer_ConcurrentConnections(t *testing.T) {
	p := &memProvider{files: map[string][]byte{"/f": []byte("data")}}
	s := newTestServer(t, p, nil)

	// A stalled client must not block others.
	stalled, err := net.Dial("tcp4", s.Addr().String())
	require.NoError(t, err)
	defer stalled.Close()
	_, err = io.WriteString(stalled, "GET /f HTTP/1.1\r\n")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, body := roundTrip(t, s, "GET /f HTTP/1.1\r\n\r\n")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "data", body)
		}()
	}
	wg.Wait()
}
