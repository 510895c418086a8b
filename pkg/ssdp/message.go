package ssdp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// SSDP protocol constants
const (
	MulticastAddr = "239.255.255.250:1900"

	NTSAlive  = "ssdp:alive"
	NTSByeBye = "ssdp:byebye"

	TargetAll        = "ssdp:all"
	TargetRootDevice = "upnp:rootdevice"

	manDiscover = `"ssdp:discover"`

	notifyLine = "NOTIFY * HTTP/1.1"
	searchLine = "M-SEARCH * HTTP/1.1"
	answerLine = "HTTP/1.1 200 OK"
)

var (
	// ErrMalformed indicates a datagram that is not an SSDP message at all.
	ErrMalformed = errors.New("malformed ssdp message")

	// ErrIncomplete indicates a recognised message missing required headers.
	ErrIncomplete = errors.New("incomplete ssdp message")
)

// Message is an inbound SSDP datagram: *Notify, *Search or *Answer.
type Message interface {
	// Sender is the address the datagram came from (nil when parsed offline).
	Sender() net.Addr

	isMessage()
}

// Notify is a NOTIFY announcement (ssdp:alive or ssdp:byebye).
type Notify struct {
	Host     string
	NT       string
	NTS      string
	USN      string
	AL       string
	Location string
	Server   string
	MaxAge   int

	From net.Addr
}

// Alive reports whether the announcement is ssdp:alive.
func (n *Notify) Alive() bool { return strings.EqualFold(n.NTS, NTSAlive) }

// ByeBye reports whether the announcement is ssdp:byebye.
func (n *Notify) ByeBye() bool { return strings.EqualFold(n.NTS, NTSByeBye) }

func (n *Notify) Sender() net.Addr { return n.From }
func (*Notify) isMessage()          {}

// Search is an M-SEARCH request.
type Search struct {
	Host string
	ST   string
	MAN  string
	MX   int

	From net.Addr
}

func (s *Search) Sender() net.Addr { return s.From }
func (*Search) isMessage()          {}

// Answer is a unicast 200 OK response to an M-SEARCH.
type Answer struct {
	ST       string
	USN      string
	Location string
	Server   string
	MaxAge   int

	From net.Addr
}

func (a *Answer) Sender() net.Addr { return a.From }
func (*Answer) isMessage()          {}

// Parse decodes a datagram. Unknown headers are ignored and truncated input is
// parsed as far as it goes; a message failing its type's validity check is
// rejected with ErrIncomplete.
func Parse(data []byte, from net.Addr) (Message, error) {
	lines := splitLines(string(data))
	if len(lines) == 0 {
		return nil, ErrMalformed
	}

	first := strings.TrimSpace(lines[0])
	headers := lines[1:]

	switch {
	case hasPrefixFold(first, "NOTIFY "):
		n := &Notify{From: from}
		for _, line := range headers {
			n.set(line)
		}
		if err := n.validate(); err != nil {
			return nil, err
		}
		return n, nil

	case hasPrefixFold(first, "M-SEARCH "):
		s := &Search{From: from}
		for _, line := range headers {
			s.set(line)
		}
		if s.ST == "" || s.MAN == "" {
			return nil, fmt.Errorf("%w: search needs ST and MAN", ErrIncomplete)
		}
		return s, nil

	case hasPrefixFold(first, "HTTP/1."):
		fields := strings.Fields(first)
		if len(fields) < 2 || fields[1] != "200" {
			return nil, fmt.Errorf("%w: status line %q", ErrMalformed, first)
		}
		a := &Answer{From: from}
		for _, line := range headers {
			a.set(line)
		}
		if a.ST == "" || a.USN == "" || a.Location == "" {
			return nil, fmt.Errorf("%w: answer needs ST, USN and LOCATION", ErrIncomplete)
		}
		return a, nil
	}

	return nil, fmt.Errorf("%w: first line %q", ErrMalformed, first)
}

func (n *Notify) set(line string) {
	if v, ok := headerValue(line, "HOST"); ok {
		n.Host = v
	} else if v, ok := headerValue(line, "NTS"); ok {
		n.NTS = v
	} else if v, ok := headerValue(line, "NT"); ok {
		n.NT = v
	} else if v, ok := headerValue(line, "USN"); ok {
		n.USN = v
	} else if v, ok := headerValue(line, "AL"); ok {
		n.AL = v
	} else if v, ok := headerValue(line, "LOCATION"); ok {
		n.Location = v
	} else if v, ok := headerValue(line, "SERVER"); ok {
		n.Server = v
	} else if v, ok := headerValue(line, "CACHE-CONTROL"); ok {
		n.MaxAge = parseMaxAge(v)
	}
}

func (n *Notify) validate() error {
	if n.NT == "" || n.NTS == "" || n.USN == "" {
		return fmt.Errorf("%w: notify needs NT, NTS and USN", ErrIncomplete)
	}
	switch {
	case n.Alive():
		if n.AL == "" && n.Location == "" {
			return fmt.Errorf("%w: alive notify needs AL or LOCATION", ErrIncomplete)
		}
	case n.ByeBye():
	default:
		return fmt.Errorf("%w: unknown NTS %q", ErrIncomplete, n.NTS)
	}
	return nil
}

func (s *Search) set(line string) {
	if v, ok := headerValue(line, "HOST"); ok {
		s.Host = v
	} else if v, ok := headerValue(line, "ST"); ok {
		s.ST = v
	} else if v, ok := headerValue(line, "MAN"); ok {
		s.MAN = v
	} else if v, ok := headerValue(line, "MX"); ok {
		s.MX, _ = strconv.Atoi(v)
	}
}

func (a *Answer) set(line string) {
	if v, ok := headerValue(line, "ST"); ok {
		a.ST = v
	} else if v, ok := headerValue(line, "USN"); ok {
		a.USN = v
	} else if v, ok := headerValue(line, "LOCATION"); ok {
		a.Location = v
	} else if v, ok := headerValue(line, "SERVER"); ok {
		a.Server = v
	} else if v, ok := headerValue(line, "CACHE-CONTROL"); ok {
		a.MaxAge = parseMaxAge(v)
	}
}

// AdvertiseBuffer builds an ssdp:alive NOTIFY.
func AdvertiseBuffer(nt, usn, location, server string, maxAge int) []byte {
	var b strings.Builder
	b.WriteString(notifyLine + "\r\n")
	b.WriteString("HOST: " + MulticastAddr + "\r\n")
	fmt.Fprintf(&b, "CACHE-CONTROL: max-age=%d\r\n", maxAge)
	b.WriteString("LOCATION: " + location + "\r\n")
	b.WriteString("NT: " + nt + "\r\n")
	b.WriteString("NTS: " + NTSAlive + "\r\n")
	b.WriteString("SERVER: " + server + "\r\n")
	b.WriteString("USN: " + usn + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ByeByeBuffer builds an ssdp:byebye NOTIFY.
func ByeByeBuffer(nt, usn string) []byte {
	var b strings.Builder
	b.WriteString(notifyLine + "\r\n")
	b.WriteString("HOST: " + MulticastAddr + "\r\n")
	b.WriteString("NT: " + nt + "\r\n")
	b.WriteString("NTS: " + NTSByeBye + "\r\n")
	b.WriteString("USN: " + usn + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// AnswerBuffer builds the unicast response to an M-SEARCH.
func AnswerBuffer(st, usn, location, server string, maxAge int, now time.Time) []byte {
	var b strings.Builder
	b.WriteString(answerLine + "\r\n")
	fmt.Fprintf(&b, "CACHE-CONTROL: max-age=%d\r\n", maxAge)
	b.WriteString("DATE: " + now.UTC().Format(time.RFC1123) + "\r\n")
	b.WriteString("EXT:\r\n")
	b.WriteString("LOCATION: " + location + "\r\n")
	b.WriteString("SERVER: " + server + "\r\n")
	b.WriteString("ST: " + st + "\r\n")
	b.WriteString("USN: " + usn + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// SearchBuffer builds an M-SEARCH request for st.
func SearchBuffer(st string, mx int) []byte {
	var b strings.Builder
	b.WriteString(searchLine + "\r\n")
	b.WriteString("HOST: " + MulticastAddr + "\r\n")
	b.WriteString("MAN: " + manDiscover + "\r\n")
	fmt.Fprintf(&b, "MX: %d\r\n", mx)
	b.WriteString("ST: " + st + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// MatchTarget reports whether a search target st selects the notification type nt.
// upnp:rootdevice must match exactly; other targets match by prefix.
func MatchTarget(st, nt string) bool {
	switch st {
	case TargetAll:
		return true
	case TargetRootDevice:
		return nt == TargetRootDevice
	}
	return st != "" && strings.HasPrefix(nt, st)
}

// headerValue compares the fixed-length prefix "NAME:" case-insensitively
// and returns the trimmed value.
func headerValue(line, name string) (string, bool) {
	if len(line) <= len(name) || line[len(name)] != ':' {
		return "", false
	}
	if !strings.EqualFold(line[:len(name)], name) {
		return "", false
	}
	return strings.TrimSpace(line[len(name)+1:]), true
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// splitLines splits on LF, tolerating CRLF, and stops at the blank line ending
// the header block.
func splitLines(s string) []string {
	raw := strings.Split(s, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if l == "" {
			if len(lines) == 0 {
				continue
			}
			break
		}
		lines = append(lines, l)
	}
	return lines
}

func parseMaxAge(v string) int {
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if !hasPrefixFold(part, "max-age") {
			continue
		}
		rest := strings.TrimSpace(part[len("max-age"):])
		if !strings.HasPrefix(rest, "=") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(rest[1:]))
		if err == nil && n >= 0 {
			return n
		}
	}
	return 0
}
