package upnp

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
)

// UPnP action error codes.
const (
	CodeInvalidAction = 401
	CodeInvalidArgs   = 402
	CodeActionFailed  = 501
)

// Argument is one named action argument.
type Argument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ActionCall is a decoded SOAP action invocation.
type ActionCall struct {
	UDN         string
	ServiceID   string
	ServiceType string
	Action      string
	Args        []Argument
}

// Arg returns the value of the named argument.
func (c *ActionCall) Arg(name string) (string, bool) {
	for _, a := range c.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// ActionHandler runs an action and returns its out arguments. Returning an
// *ActionError controls the UPnP error code sent back; any other error is
// reported as 501 Action Failed.
type ActionHandler func(ctx context.Context, call *ActionCall) ([]Argument, error)

// ActionError is a UPnP fault. It implements gena.Fault.
type ActionError struct {
	Code        int
	Description string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("upnp error %d: %s", e.Code, e.Description)
}

// FaultBody renders the SOAP fault envelope.
func (e *ActionError) FaultBody() []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`)
	b.WriteString(`<s:Body><s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring><detail>`)
	b.WriteString(`<UPnPError xmlns="urn:schemas-upnp-org:control-1-0">`)
	fmt.Fprintf(&b, "<errorCode>%d</errorCode><errorDescription>", e.Code)
	xml.EscapeText(&b, []byte(e.Description))
	b.WriteString(`</errorDescription></UPnPError></detail></s:Fault></s:Body></s:Envelope>`)
	return b.Bytes()
}

func invalidAction(format string, args ...any) *ActionError {
	return &ActionError{Code: CodeInvalidAction, Description: fmt.Sprintf(format, args...)}
}

// parseActionArgs extracts the arguments of the <u:action> element inside a
// SOAP envelope body.
func parseActionArgs(body []byte, action string) ([]Argument, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	// depth: 1 Envelope, 2 Body, 3 action element, 4 arguments
	depth := 0
	inAction := false
	var args []Argument
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ActionError{Code: CodeInvalidArgs, Description: err.Error()}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 3 && t.Name.Local == action {
				inAction = true
				continue
			}
			if inAction && depth == 4 {
				var value string
				if err := dec.DecodeElement(&value, &t); err != nil {
					return nil, &ActionError{Code: CodeInvalidArgs, Description: err.Error()}
				}
				depth--
				args = append(args, Argument{Name: t.Name.Local, Value: value})
			}
		case xml.EndElement:
			if depth == 3 && inAction {
				return args, nil
			}
			depth--
		}
	}

	if !inAction {
		return nil, invalidAction("no %s element in request", action)
	}
	return args, nil
}

// actionResponse renders the SOAP response envelope for a successful action.
func actionResponse(serviceType, action string, out []Argument) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`)
	b.WriteString(`<s:Body>`)
	fmt.Fprintf(&b, `<u:%sResponse xmlns:u="%s">`, action, escapeAttr(serviceType))
	for _, a := range out {
		fmt.Fprintf(&b, "<%s>", a.Name)
		xml.EscapeText(&b, []byte(a.Value))
		fmt.Fprintf(&b, "</%s>", a.Name)
	}
	fmt.Fprintf(&b, `</u:%sResponse>`, action)
	b.WriteString(`</s:Body></s:Envelope>`)
	return b.Bytes()
}

func escapeAttr(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
