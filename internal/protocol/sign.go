// ABOUTME: Sign request and sign response payload encoding
// ABOUTME: Flags are optional on the wire and default to zero

package protocol

// SignRequest is the decoded payload of a SIGN_REQUEST message.
type SignRequest struct {
	KeyBlob []byte
	Data    []byte
	Flags   uint32
}

// Fingerprint returns the routing fingerprint of the requested key.
func (s *SignRequest) Fingerprint() string {
	return Fingerprint(s.KeyBlob)
}

// ParseSignRequest decodes a SIGN_REQUEST payload. A missing trailing flags
// field decodes as zero.
func ParseSignRequest(payload []byte) (*SignRequest, error) {
	r := &payloadReader{buf: payload}

	blob, err := r.bytes("key blob")
	if err != nil {
		return nil, err
	}
	data, err := r.bytes("data")
	if err != nil {
		return nil, err
	}

	req := &SignRequest{KeyBlob: blob, Data: data}
	if r.remaining() >= 4 {
		req.Flags, err = r.uint32("flags")
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Marshal encodes the request as a SIGN_REQUEST payload, always including flags.
func (s *SignRequest) Marshal() []byte {
	w := &payloadWriter{}
	w.bytes(s.KeyBlob)
	w.bytes(s.Data)
	w.uint32(s.Flags)
	return w.buf
}

// Message wraps the request in a SIGN_REQUEST message.
func (s *SignRequest) Message() *Message {
	return &Message{Type: TypeSignRequest, Payload: s.Marshal()}
}

// MarshalSignResponse encodes a signature as a SIGN_RESPONSE payload.
func MarshalSignResponse(signature []byte) []byte {
	w := &payloadWriter{}
	w.bytes(signature)
	return w.buf
}

// NewSignResponse builds a SIGN_RESPONSE message.
func NewSignResponse(signature []byte) *Message {
	return &Message{Type: TypeSignResponse, Payload: MarshalSignResponse(signature)}
}

// ParseSignResponse decodes a SIGN_RESPONSE payload and returns the signature.
func ParseSignResponse(payload []byte) ([]byte, error) {
	r := &payloadReader{buf: payload}
	return r.bytes("signature")
}
