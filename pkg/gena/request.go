package gena

import (
	"bufio"
	"errors"
	"fmt"
	"net/textproto"
	"net/url"
	"strings"
)

var (
	// errBadRequestLine drops the connection without a response.
	errBadRequestLine = errors.New("unparsable request line")

	// errBadHeaders is answered with 400.
	errBadHeaders = errors.New("malformed request headers")
)

type request struct {
	method string
	target string
	path   string
	proto  string
	header textproto.MIMEHeader
}

func readRequest(br *bufio.Reader) (*request, error) {
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequestLine, err)
	}
	fields := strings.Fields(line)
	if len(fields) != 3 || !strings.HasPrefix(fields[2], "HTTP/") {
		return nil, fmt.Errorf("%w: %q", errBadRequestLine, line)
	}

	req := &request{
		method: strings.ToUpper(fields[0]),
		target: fields[1],
		proto:  fields[2],
	}

	req.header, err = tp.ReadMIMEHeader()
	if err != nil {
		return req, fmt.Errorf("%w: %v", errBadHeaders, err)
	}

	req.path, err = decodePath(req.target)
	if err != nil {
		return req, fmt.Errorf("%w: %v", errBadHeaders, err)
	}
	return req, nil
}

// vendorEscapes are non-standard escapes emitted by some control points.
var vendorEscapes = strings.NewReplacer(
	"%2M", ",", "%2m", ",",
	"%2N", "-", "%2n", "-",
)

// decodePath strips any query and percent-decodes the request target.
func decodePath(target string) (string, error) {
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		target = u.RequestURI()
	}
	target, _, _ = strings.Cut(target, "?")
	return url.PathUnescape(vendorEscapes.Replace(target))
}
