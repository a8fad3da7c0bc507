package commitment_test

import (
	"testing"

	"github.com/AgoraXchange/agora-contract/internal/commitment"
	"github.com/google/uuid"
)

var testBettor = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

func TestCompute_Deterministic(t *testing.T) {
	a := commitment.Compute(1, testBettor, 1, 42, 1_000_000)
	b := commitment.Compute(1, testBettor, 1, 42, 1_000_000)
	if a != b {
		t.Error("same preimage should produce the same digest")
	}
}

func TestVerify_Matches(t *testing.T) {
	h := commitment.Compute(7, testBettor, 2, 999, 2_500_000)
	if !h.Verify(7, testBettor, 2, 999, 2_500_000) {
		t.Error("digest should verify against its own preimage")
	}
}

func TestVerify_RejectsAnyChangedField(t *testing.T) {
	h := commitment.Compute(7, testBettor, 2, 999, 2_500_000)

	otherBettor := uuid.MustParse("550e8400-e29b-41d4-a716-446655440001")

	cases := []struct {
		name     string
		marketID uint64
		bettor   uuid.UUID
		choice   uint8
		nonce    uint64
		amount   int64
	}{
		{"market", 8, testBettor, 2, 999, 2_500_000},
		{"bettor", 7, otherBettor, 2, 999, 2_500_000},
		{"choice", 7, testBettor, 1, 999, 2_500_000},
		{"nonce", 7, testBettor, 2, 998, 2_500_000},
		{"amount", 7, testBettor, 2, 999, 2_500_001},
	}
	for _, tc := range cases {
		if h.Verify(tc.marketID, tc.bettor, tc.choice, tc.nonce, tc.amount) {
			t.Errorf("changed %s should not verify", tc.name)
		}
	}
}

func TestHash_StringParse_RoundTrip(t *testing.T) {
	h := commitment.Compute(3, testBettor, 1, 1, 100)

	s := h.String()
	if len(s) != 64 {
		t.Fatalf("hex digest should be 64 chars, got %d", len(s))
	}

	parsed, err := commitment.Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != h {
		t.Error("parsed digest should equal original")
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"not-hex",
		"abcdef", // too short
		"zz" + string(make([]byte, 62)),
	}
	for _, s := range cases {
		if _, err := commitment.Parse(s); err == nil {
			t.Errorf("Parse(%q) should fail", s)
		}
	}
}

func TestHash_IsZero(t *testing.T) {
	var zero commitment.Hash
	if !zero.IsZero() {
		t.Error("zero value should report IsZero")
	}

	h := commitment.Compute(1, testBettor, 1, 1, 1)
	if h.IsZero() {
		t.Error("computed digest should not be zero")
	}
}

func TestHash_TextMarshalling(t *testing.T) {
	h := commitment.Compute(5, testBettor, 2, 77, 500_000)

	text, err := h.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded commitment.Hash
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded != h {
		t.Error("text round trip should preserve the digest")
	}
}
