// Package terraria implements the scan-relevant subset of the Terraria wire
// protocol (spec §4.4): the client Connect packet the scanner injects, and
// the three server reply shapes it classifies. Grounded on
// _examples/original_source/te-terraria-protocol/src/types.rs (string
// codec) and
// _examples/original_source/libs/chlorophyte-terraria-protocol/src/packet.rs
// (packet shapes), translated from the Read/Write-trait style into plain
// functions over byte slices, since the scanner never holds a buffered
// stream — recv() already hands back one segment's payload.
package terraria

import (
	"encoding/binary"
	"errors"
	"strconv"
)

// Packet ids used on the scan path.
const (
	IDConnect            byte = 1
	IDFatalError         byte = 2
	IDConnectionApproved byte = 3
	IDPasswordRequired   byte = 37
	IDNetModule          byte = 82
)

// ProtocolVersion is the client version number advertised in Connect.
const ProtocolVersion = 279

var ErrFrameTooShort = errors.New("terraria: frame shorter than 3 bytes")

// EncodeFrame builds a length-prefixed frame: LE u16 total length, u8
// packet_id, payload. length includes itself.
func EncodeFrame(packetID byte, payload []byte) []byte {
	total := 2 + 1 + len(payload)
	frame := make([]byte, total)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(total))
	frame[2] = packetID
	copy(frame[3:], payload)
	return frame
}

// DecodeFrame splits a raw TCP payload into its packet id and the frame
// payload following it. data is the full segment payload recv() handed
// back; the length field is not revalidated against len(data) since the
// receiver only needs packet_id and the bytes after it.
func DecodeFrame(data []byte) (packetID byte, payload []byte, err error) {
	if len(data) < 3 {
		return 0, nil, ErrFrameTooShort
	}
	return data[2], data[3:], nil
}

// WriteTerrariaString encodes s with a 7-bit continuation length prefix:
// low 7 bits of each byte carry length bits, the high bit set means another
// length byte follows. Strings under 128 bytes get a single length byte.
func WriteTerrariaString(s string) []byte {
	var lenBytes []byte
	n := int32(len(s))
	for n >= 128 {
		lenBytes = append(lenBytes, byte(n)|0x80)
		n >>= 7
	}
	lenBytes = append(lenBytes, byte(n))
	return append(lenBytes, s...)
}

// ReadTerrariaString reads a single-byte-prefixed string off the front of
// data, per the scan path's observed wire contract: length is the prefix
// byte minus 2, not the writer's 7-bit continuation decoding. See the
// asymmetry note in DESIGN.md — this is deliberate, not a bug to fix.
func ReadTerrariaString(data []byte) (string, int, error) {
	if len(data) < 1 {
		return "", 0, errors.New("terraria: empty string field")
	}
	length := int(data[0]) - 2
	if length < 0 {
		return "", 0, errors.New("terraria: negative string length")
	}
	if len(data) < 1+length {
		return "", 0, errors.New("terraria: truncated string")
	}
	return string(data[1 : 1+length]), 1 + length, nil
}

// BuildConnect serializes the client Connect frame the scanner sends once
// per flow, after the TCP handshake completes.
func BuildConnect() []byte {
	payload := WriteTerrariaString("Terraria" + strconv.Itoa(ProtocolVersion))
	return EncodeFrame(IDConnect, payload)
}

// ParseConnectionApproved reads the slot byte off an S2CConnectionApproved
// payload; any bytes after it are ignored.
func ParseConnectionApproved(payload []byte) (slot byte, err error) {
	if len(payload) < 1 {
		return 0, errors.New("terraria: ConnectionApproved payload empty")
	}
	return payload[0], nil
}

// ParseFatalError reads the disconnect reason off an S2CFatalError payload.
func ParseFatalError(payload []byte) (reason string, err error) {
	reason, _, err = ReadTerrariaString(payload)
	return reason, err
}
