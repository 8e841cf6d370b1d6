package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	known := []string{
		"", // no error
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrNotFound,
		ErrInvalidAmount,
		ErrIneligible,
		ErrInsufficientFunds,
		ErrCapacityExceeded,
		ErrRateLimit,
		ErrStale,
		ErrInternal,
	}
	for _, code := range known {
		if !IsKnownCode(code) {
			t.Fatalf("IsKnownCode(%q) = false", code)
		}
	}

	for _, code := range []string{"E_NOPE", "e_stale", "STALE"} {
		if IsKnownCode(code) {
			t.Fatalf("IsKnownCode(%q) = true", code)
		}
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"ACT","protocol_version":"1.0","tick":9}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != TypeAct || m.ProtocolVersion != Version {
		t.Fatalf("base = %+v", m)
	}
	if _, err := DecodeBase([]byte(`{`)); err == nil {
		t.Fatalf("malformed JSON accepted")
	}
}
