/******************************************************************************
 *
 *  Description :
 *
 *    Inbound and outbound wire frames for the session's XML change-stream.
 *    An inbound frame is classified by its root element name; an outbound
 *    frame is built from a PropBag of already-resolved attributes.
 *
 *****************************************************************************/

package wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Element names this proxy owns or emits. Everything else is forwarded to
// the session verbatim.
const (
	ElemUserJoin           = "user-join"
	ElemUserRejoin         = "user-rejoin"
	ElemUserStatusChange   = "user-status-change"
	ElemSessionUnsubscribe = "session-unsubscribe"
	ElemSessionClose       = "session-close"
	ElemRequestFailed      = "request-failed"
)

// RawFrame is a parsed inbound message: its root element name, its
// attributes as a PropBag of strings, and the original bytes for verbatim
// forwarding to the session.
type RawFrame struct {
	Name  string
	Attrs PropBag
	Body  []byte
}

// Seq returns the numeric "seq" attribute, if present. A present-but-
// unparsable seq is a malformed-frame error, not a missing-seq no-op.
func (f *RawFrame) Seq() (seq uint64, present bool, err error) {
	return f.Attrs.GetUint64("seq")
}

// ParseFrame decodes the root element of an inbound XML message: its local
// name and attributes. It does not validate the element's children; those
// are the session's concern once forwarded.
func ParseFrame(body []byte) (*RawFrame, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("wire: empty frame")
		}
		if err != nil {
			return nil, fmt.Errorf("wire: malformed frame: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		attrs := make(PropBag, 0, len(start.Attr))
		for _, a := range start.Attr {
			attrs = append(attrs, Prop{Name: a.Name.Local, Value: a.Value})
		}
		return &RawFrame{Name: start.Name.Local, Attrs: attrs, Body: body}, nil
	}
}

// SeqToken composes the reply seq token "{subSeqID}/{seq}" per the
// correlation scheme every reply uses.
func SeqToken(subSeqID uint64, seq uint64) string {
	return fmt.Sprintf("%d/%d", subSeqID, seq)
}

// MarshalElement renders a single empty XML element (a start tag with
// attrs in bag order, immediately followed by its end tag; encoding/xml
// never emits the self-closed form). Nil-valued props are skipped. Values are stringified with fmt so both string and integer
// props round-trip without a type switch at every call site.
func MarshalElement(name string, attrs PropBag) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	start := xml.StartElement{Name: xml.Name{Local: name}}
	for _, p := range attrs {
		if p.Value == nil {
			continue
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: p.Name}, Value: fmt.Sprint(p.Value)})
	}
	if err := enc.EncodeToken(start); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(xml.EndElement{Name: start.Name}); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
