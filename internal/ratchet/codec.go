package ratchet

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// On-disk and on-wire crypto state is gob-encoded, the same choice
// go-neb's matrix BotClient makes for its Olm crypto store
// (crypto.NewGobStore) when no SQL backend is configured. Every blob is
// framed with a tiny magic+version header so a future format change is
// detected instead of silently misparsed, mirroring the length-prefixed
// framing the original Rust cryptobox file store used.
const (
	magic       = "WBR1"
	versionByte = byte(1)
	headerLen   = len(magic) + 1
)

func frame(payload []byte) []byte {
	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, magic...)
	out = append(out, versionByte)
	out = append(out, payload...)
	return out
}

func unframe(data []byte) ([]byte, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("truncated blob (%d bytes)", len(data))
	}
	if string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("bad magic %q", data[:len(magic)])
	}
	if data[len(magic)] != versionByte {
		return nil, fmt.Errorf("unsupported blob version %d", data[len(magic)])
	}
	return data[headerLen:], nil
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return frame(buf.Bytes()), nil
}

func gobDecode(data []byte, v any) error {
	payload, err := unframe(data)
	if err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(payload)).Decode(v)
}

func marshalBundle(b preKeyBundleWire) ([]byte, error) {
	return gobEncode(b)
}

func unmarshalBundle(raw []byte) (preKeyBundleWire, error) {
	var b preKeyBundleWire
	err := gobDecode(raw, &b)
	return b, err
}
