package upnp

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Notifier delivers one event message to a subscriber callback.
type Notifier interface {
	Notify(ctx context.Context, callback, sid string, seq uint32, body []byte) error
}

// HTTPNotifier sends GENA NOTIFY requests over HTTP.
type HTTPNotifier struct {
	Client *http.Client
}

// NewHTTPNotifier returns a notifier whose requests time out after timeout.
func NewHTTPNotifier(timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{Client: &http.Client{Timeout: timeout}}
}

func (n *HTTPNotifier) Notify(ctx context.Context, callback, sid string, seq uint32, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "NOTIFY", callback, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify for %s: %w", sid, err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")
	req.Header.Set("SID", sid)
	req.Header.Set("SEQ", strconv.FormatUint(uint64(seq), 10))

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s: %w", sid, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify %s: callback answered %s", sid, resp.Status)
	}
	return nil
}

// propertySet renders the <e:propertyset> event body.
func propertySet(vars []Variable) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">`)
	for _, v := range vars {
		fmt.Fprintf(&b, "<e:property><%s>", v.Name)
		xml.EscapeText(&b, []byte(v.Value))
		fmt.Fprintf(&b, "</%s></e:property>", v.Name)
	}
	b.WriteString(`</e:propertyset>`)
	return b.Bytes()
}

// parseCallback returns the first http URL of a CALLBACK header, which is a
// list of <url> elements.
func parseCallback(header string) (string, bool) {
	rest := header
	for {
		start := strings.IndexByte(rest, '<')
		if start < 0 {
			return "", false
		}
		end := strings.IndexByte(rest[start:], '>')
		if end < 0 {
			return "", false
		}
		candidate := strings.TrimSpace(rest[start+1 : start+end])
		rest = rest[start+end+1:]

		u, err := url.Parse(candidate)
		if err == nil && u.Scheme == "http" && u.Host != "" {
			return candidate, true
		}
	}
}
