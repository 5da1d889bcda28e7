// ABOUTME: Identity type, truncated SHA-256 fingerprints, and identities-answer encoding
// ABOUTME: Key blobs stay opaque; ssh parsing is only used to label key types

package protocol

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// MaxIdentities is the largest identity count accepted in an answer.
const MaxIdentities = 1000

// FingerprintLength is the number of hex characters in a fingerprint.
const FingerprintLength = 16

// Identity is a public key blob advertised by an agent.
type Identity struct {
	Blob    []byte
	Comment string
}

// Fingerprint returns the first 8 bytes of SHA-256(blob) as lowercase hex.
func Fingerprint(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:FingerprintLength/2])
}

// Fingerprint returns the identity's routing fingerprint.
func (id Identity) Fingerprint() string {
	return Fingerprint(id.Blob)
}

// KeyType returns the SSH key algorithm named in the blob, or "unknown"
// if the blob does not parse.
func (id Identity) KeyType() string {
	pub, err := ssh.ParsePublicKey(id.Blob)
	if err != nil {
		return "unknown"
	}
	return pub.Type()
}

// String formats the identity for logs and prompts.
func (id Identity) String() string {
	if id.Comment == "" {
		return fmt.Sprintf("%s %s", id.KeyType(), id.Fingerprint())
	}
	return fmt.Sprintf("%s %s (%s)", id.KeyType(), id.Fingerprint(), id.Comment)
}

// ParseIdentitiesAnswer decodes the payload of an IDENTITIES_ANSWER message.
func ParseIdentitiesAnswer(payload []byte) ([]Identity, error) {
	r := &payloadReader{buf: payload}

	count, err := r.uint32("identity count")
	if err != nil {
		return nil, err
	}
	if count > MaxIdentities {
		return nil, fmt.Errorf("%w: identity count %d exceeds %d", ErrMalformed, count, MaxIdentities)
	}

	ids := make([]Identity, 0, count)
	for i := uint32(0); i < count; i++ {
		blob, err := r.bytes(fmt.Sprintf("identity %d key blob", i))
		if err != nil {
			return nil, err
		}
		comment, err := r.bytes(fmt.Sprintf("identity %d comment", i))
		if err != nil {
			return nil, err
		}
		ids = append(ids, Identity{Blob: blob, Comment: string(comment)})
	}
	return ids, nil
}

// MarshalIdentitiesAnswer encodes identities as an IDENTITIES_ANSWER payload.
func MarshalIdentitiesAnswer(ids []Identity) []byte {
	w := &payloadWriter{}
	w.uint32(uint32(len(ids)))
	for _, id := range ids {
		w.bytes(id.Blob)
		w.bytes([]byte(id.Comment))
	}
	return w.buf
}

// NewIdentitiesAnswer builds an IDENTITIES_ANSWER message.
func NewIdentitiesAnswer(ids []Identity) *Message {
	return &Message{Type: TypeIdentitiesAnswer, Payload: MarshalIdentitiesAnswer(ids)}
}

// payloadReader walks a payload, bounds-checking every length field.
type payloadReader struct {
	buf []byte
	off int
}

func (r *payloadReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *payloadReader) uint32(field string) (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: %s needs 4 bytes, %d remain", ErrMalformed, field, r.remaining())
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *payloadReader) bytes(field string) ([]byte, error) {
	n, err := r.uint32(field + " length")
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.remaining()) {
		return nil, fmt.Errorf("%w: %s length %d exceeds remaining %d bytes", ErrMalformed, field, n, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return out, nil
}

type payloadWriter struct {
	buf []byte
}

func (w *payloadWriter) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *payloadWriter) bytes(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}
