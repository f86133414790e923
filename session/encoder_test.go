package session

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeRejectsBadUsername(t *testing.T) {
	if _, err := Encode(&Session{}); err == nil {
		t.Fatal("expected error for empty username")
	}
	if _, err := Encode(&Session{Username: strings.Repeat("u", 256)}); err == nil {
		t.Fatal("expected error for oversized username")
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	_, err := Decode([]byte{99})
	if !errors.Is(err, ErrSessionCorrupt) || !strings.Contains(err.Error(), "unsupported session format version") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(testSession())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(append(data, 0)); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected corrupt error for trailing bytes, got %v", err)
	}
}

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
func FuzzSessionDecode(f *testing.F) {
	sess := &Session{
		Username:      "spartan",
		UserAgentHash: [32]byte{1, 2, 3},
		CreatedAt:     1700000000,
		ExpiresAt:     1700003600,
	}
	encoded, err := Encode(sess)
	if err == nil {
		f.Add(encoded)
		f.Add(encoded[:10])
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{1, 255, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			if !errors.Is(err, ErrSessionCorrupt) {
				t.Fatalf("decode error must wrap ErrSessionCorrupt, got %v", err)
			}
			return
		}

		again, err := Encode(s)
		if err != nil {
			t.Fatalf("re-encode of decoded session failed: %v", err)
		}
		if string(again) != string(data) {
			t.Fatal("decode/encode is not stable")
		}
	})
}
