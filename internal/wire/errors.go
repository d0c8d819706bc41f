package wire

// ErrorPayload is the wire shape of a request-failed reply: an error
// domain token, a numeric code, and a human-readable message.
type ErrorPayload struct {
	Domain  string
	Code    int
	Message string
	Seq     string // empty when the inbound message carried no seq
}

// MarshalRequestFailed builds the request-failed reply frame for a single
// originator. It is never broadcast.
func MarshalRequestFailed(e ErrorPayload) ([]byte, error) {
	attrs := PropBag{
		{Name: "domain", Value: e.Domain},
		{Name: "code", Value: e.Code},
		{Name: "message", Value: e.Message},
	}
	if e.Seq != "" {
		attrs = append(attrs, Prop{Name: "seq", Value: e.Seq})
	}
	return MarshalElement(ElemRequestFailed, attrs)
}
