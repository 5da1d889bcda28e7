// ABOUTME: Tests for identity encoding, sign payloads and fingerprints
// ABOUTME: Includes bounds-checking of every length field

package protocol

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newKeyBlob(t *testing.T) []byte {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return sshPub.Marshal()
}

func TestFingerprint_Deterministic(t *testing.T) {
	blob := newKeyBlob(t)
	other := newKeyBlob(t)

	fp := Fingerprint(blob)
	assert.Equal(t, fp, Fingerprint(blob))
	assert.Len(t, fp, FingerprintLength)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), fp)
	assert.NotEqual(t, fp, Fingerprint(other))
}

func TestFingerprint_KnownValue(t *testing.T) {
	// sha256("abc") = ba7816bf8f01cfea...
	assert.Equal(t, "ba7816bf8f01cfea", Fingerprint([]byte("abc")))
}

func TestIdentity_KeyType(t *testing.T) {
	id := Identity{Blob: newKeyBlob(t), Comment: "work"}
	assert.Equal(t, ssh.KeyAlgoED25519, id.KeyType())
	assert.Contains(t, id.String(), "(work)")

	assert.Equal(t, "unknown", Identity{Blob: []byte("junk")}.KeyType())
}

func TestIdentitiesAnswer_RoundTrip(t *testing.T) {
	ids := []Identity{
		{Blob: newKeyBlob(t), Comment: "personal"},
		{Blob: newKeyBlob(t), Comment: "wörk ключ"},
		{Blob: []byte{1}, Comment: ""},
	}

	got, err := ParseIdentitiesAnswer(MarshalIdentitiesAnswer(ids))
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	empty, err := ParseIdentitiesAnswer(MarshalIdentitiesAnswer(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseIdentitiesAnswer_Malformed(t *testing.T) {
	valid := MarshalIdentitiesAnswer([]Identity{{Blob: []byte("blob"), Comment: "c"}})

	tests := []struct {
		name    string
		payload []byte
		field   string
	}{
		{"missing count", []byte{0, 0}, "identity count"},
		{"count too large", binary.BigEndian.AppendUint32(nil, MaxIdentities+1), "identity count"},
		{"count exceeds entries", binary.BigEndian.AppendUint32(nil, 2), "identity 0 key blob"},
		{"blob overruns", append(binary.BigEndian.AppendUint32(nil, 1), 0, 0, 0, 50, 1), "identity 0 key blob"},
		{"truncated comment", valid[:len(valid)-1], "identity 0 comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIdentitiesAnswer(tt.payload)
			require.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSignRequest_RoundTrip(t *testing.T) {
	req := &SignRequest{KeyBlob: newKeyBlob(t), Data: []byte("session-data"), Flags: 4}

	got, err := ParseSignRequest(req.Marshal())
	require.NoError(t, err)
	assert.Equal(t, req, got)
	assert.Equal(t, Fingerprint(req.KeyBlob), got.Fingerprint())
	assert.Equal(t, TypeSignRequest, req.Message().Type)
}

func TestParseSignRequest_FlagsOptional(t *testing.T) {
	w := &payloadWriter{}
	w.bytes([]byte("key"))
	w.bytes([]byte("data"))

	got, err := ParseSignRequest(w.buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), got.Flags)
	assert.Equal(t, []byte("key"), got.KeyBlob)
	assert.Equal(t, []byte("data"), got.Data)
}

func TestParseSignRequest_Malformed(t *testing.T) {
	t.Run("key blob overruns", func(t *testing.T) {
		_, err := ParseSignRequest([]byte{0, 0, 0, 9, 1, 2})
		require.ErrorIs(t, err, ErrMalformed)
		assert.Contains(t, err.Error(), "key blob")
	})

	t.Run("data overruns", func(t *testing.T) {
		w := &payloadWriter{}
		w.bytes([]byte("key"))
		w.uint32(100)
		_, err := ParseSignRequest(w.buf)
		require.ErrorIs(t, err, ErrMalformed)
		assert.Contains(t, err.Error(), "data")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseSignRequest(nil)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestSignResponse_RoundTrip(t *testing.T) {
	msg := NewSignResponse([]byte("sig"))
	assert.Equal(t, TypeSignResponse, msg.Type)

	sig, err := ParseSignResponse(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("sig"), sig)

	_, err = ParseSignResponse([]byte{0, 0, 0, 4, 1})
	assert.ErrorIs(t, err, ErrMalformed)
}
