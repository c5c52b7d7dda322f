package terraria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTerrariaStringShortLength(t *testing.T) {
	encoded := WriteTerrariaString("hi")
	assert.Equal(t, []byte{2, 'h', 'i'}, encoded)
}

func TestWriteTerrariaStringContinuation(t *testing.T) {
	s := make([]byte, 200)
	for i := range s {
		s[i] = 'a'
	}
	encoded := WriteTerrariaString(string(s))
	// 200 >= 128: first byte is (200|0x80)&0xFF, second byte is 200>>7 = 1.
	assert.Equal(t, byte(200|0x80), encoded[0])
	assert.Equal(t, byte(1), encoded[1])
	assert.Len(t, encoded, 2+200)
}

// ReadTerrariaString implements the scan path's observed wire contract
// (length = prefix byte - 2), not the writer's inverse — see the §9 open
// question preserved in DESIGN.md. A server sending "hi" with the ordinary
// writer encoding (prefix=2) therefore reads back as an empty string
// (length 0); a server must send prefix=len+2 for the scan-path reader to
// recover it.
func TestReadTerrariaStringAppliesMinusTwoRule(t *testing.T) {
	reason := "Invalid ver"
	data := append([]byte{byte(len(reason) + 2)}, reason...)
	got, n, err := ReadTerrariaString(data)
	require.NoError(t, err)
	assert.Equal(t, reason, got)
	assert.Equal(t, len(data), n)
}

func TestReadTerrariaStringRejectsNegativeLength(t *testing.T) {
	_, _, err := ReadTerrariaString([]byte{1})
	assert.Error(t, err)
}

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	frame := EncodeFrame(IDConnectionApproved, []byte{0})
	id, payload, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, IDConnectionApproved, id)
	assert.Equal(t, []byte{0}, payload)
}

func TestDecodeFrameRejectsShortPayload(t *testing.T) {
	_, _, err := DecodeFrame([]byte{1, 2})
	assert.Error(t, err)
}

func TestBuildConnectPayload(t *testing.T) {
	frame := BuildConnect()
	id, payload, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, IDConnect, id)

	// This is the writer path (not the buggy reader), so the ordinary
	// single-byte length prefix applies: len("Terraria279") = 11.
	assert.Equal(t, byte(11), payload[0])
	assert.Equal(t, "Terraria279", string(payload[1:]))
}

// Scenario 3 (handshake to Approved): peer PSHes
// [0A 00 03 00 00 00 00 00 00 00] — length=10, id=3, slot=0, padding.
func TestScenarioHandshakeToApproved(t *testing.T) {
	frame := []byte{0x0A, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	id, payload, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, IDConnectionApproved, id)

	slot, err := ParseConnectionApproved(payload)
	require.NoError(t, err)
	assert.Equal(t, byte(0), slot)
}

// Scenario 4 (booted with reason): peer PSHes a FatalError frame whose
// string prefix byte is the reader's expected len+2 encoding.
func TestScenarioBootedWithReason(t *testing.T) {
	reason := "Invalid ver"
	strBytes := append([]byte{byte(len(reason) + 2)}, reason...)
	frame := EncodeFrame(IDFatalError, strBytes)

	id, payload, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, IDFatalError, id)

	got, err := ParseFatalError(payload)
	require.NoError(t, err)
	assert.Equal(t, reason, got)
}

func TestParseConnectionApprovedRejectsEmptyPayload(t *testing.T) {
	_, err := ParseConnectionApproved(nil)
	assert.Error(t, err)
}
