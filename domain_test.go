package main

import "testing"

func TestNormalizeFingerprintAccepts(t *testing.T) {
	cases := []string{
		"example.com",
		"EXAMPLE.COM",
		"sub.example.com.",
		"xn--80akhbyknj4f.com", // pre-encoded IDN
		"münchen.de",
	}
	for _, raw := range cases {
		got, err := NormalizeFingerprint(raw)
		if err != nil {
			t.Errorf("NormalizeFingerprint(%q) unexpected error: %v", raw, err)
			continue
		}
		if got == "" {
			t.Errorf("NormalizeFingerprint(%q) returned empty string", raw)
		}
	}
}

func TestNormalizeFingerprintRejects(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"nodothere",
		"has space.com",
		"has\ttab.com",
		string(rune(0x07)) + "bell.com",
	}
	for _, raw := range cases {
		if _, err := NormalizeFingerprint(raw); err == nil {
			t.Errorf("NormalizeFingerprint(%q) expected error, got none", raw)
		}
	}
}

func TestNormalizeFingerprintLengthBoundary(t *testing.T) {
	// 253 total octets is the maximum well-formed length; build a name
	// exactly at and one past the boundary using 50-char labels.
	label := ""
	for i := 0; i < 49; i++ {
		label += "a"
	}
	// 4 labels of 49 chars + 3 dots = 199, plus ".com" = 203; pad with
	// one more safe label to approach the 253 boundary without needing
	// an exact construction (NormalizeFingerprint's own check is what's
	// under test, not a specific domain generator).
	ok := label + "." + label + "." + label + "." + label + ".com"
	if _, err := NormalizeFingerprint(ok); err != nil {
		t.Errorf("expected a well-formed sub-253 domain to be accepted, got: %v", err)
	}

	tooLong := ""
	for i := 0; i < 6; i++ {
		tooLong += label + "."
	}
	tooLong += "com"
	if _, err := NormalizeFingerprint(tooLong); err == nil {
		t.Error("expected an over-253-character domain to be rejected")
	}
}

func TestNormalizeFingerprintLowercases(t *testing.T) {
	got, err := NormalizeFingerprint("ExAmPlE.CoM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "example.com" {
		t.Errorf("expected lowercase normalization, got %q", got)
	}
}
