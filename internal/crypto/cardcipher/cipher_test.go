package cardcipher

import (
	"errors"
	"strings"
	"testing"

	"github.com/imalykh/bankcards/internal/errs"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key := []byte("0123456789abcdef0123456789abcdef")
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_KeyLength(t *testing.T) {
	t.Parallel()

	if _, err := New([]byte("short")); err == nil {
		t.Fatalf("want error for short key")
	}
	if _, err := New(make([]byte, 32)); err != nil {
		t.Fatalf("New(32 bytes): %v", err)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()
	c := testCipher(t)

	const number = "4111111111111111"
	enc, err := c.Encrypt(number)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if enc == number {
		t.Fatalf("ciphertext equals plaintext")
	}

	plain, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != number {
		t.Fatalf("round trip: got %q, want %q", plain, number)
	}

	enc2, err := c.Encrypt(number)
	if err != nil {
		t.Fatalf("Encrypt(2): %v", err)
	}
	if enc == enc2 {
		t.Fatalf("two encryptions of the same number are identical — nonce not random")
	}
}

func TestEncrypt_RejectsNonDigits(t *testing.T) {
	t.Parallel()
	c := testCipher(t)

	for _, bad := range []string{"", "1234", "411111111111111x", "41111111111111112"} {
		if _, err := c.Encrypt(bad); !errors.Is(err, errs.ErrCrypto) {
			t.Fatalf("Encrypt(%q): want ErrCrypto, got %v", bad, err)
		}
	}
}

func TestDecrypt_TamperedAndGarbage(t *testing.T) {
	t.Parallel()
	c := testCipher(t)

	enc, err := c.Encrypt("4111111111111111")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip one character of the base64 payload.
	tampered := []byte(enc)
	if tampered[len(tampered)-5] == 'A' {
		tampered[len(tampered)-5] = 'B'
	} else {
		tampered[len(tampered)-5] = 'A'
	}
	if _, err := c.Decrypt(string(tampered)); !errors.Is(err, errs.ErrCrypto) {
		t.Fatalf("tampered: want ErrCrypto, got %v", err)
	}

	if _, err := c.Decrypt("not-base64!!!"); !errors.Is(err, errs.ErrCrypto) {
		t.Fatalf("garbage: want ErrCrypto, got %v", err)
	}
	if _, err := c.Decrypt("QQ=="); !errors.Is(err, errs.ErrCrypto) {
		t.Fatalf("too short: want ErrCrypto, got %v", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()

	c1 := testCipher(t)
	c2, err := New([]byte("fedcba9876543210fedcba9876543210"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	enc, err := c1.Encrypt("4111111111111111")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c2.Decrypt(enc); !errors.Is(err, errs.ErrCrypto) {
		t.Fatalf("wrong key: want ErrCrypto, got %v", err)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()
	c := testCipher(t)

	a := c.Fingerprint("4111111111111111")
	b := c.Fingerprint("4111111111111111")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %q vs %q", a, b)
	}
	if a == c.Fingerprint("4111111111111112") {
		t.Fatalf("fingerprints collide for different numbers")
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length %d, want 64 hex chars", len(a))
	}
}

func TestMask(t *testing.T) {
	t.Parallel()

	if got := Mask("4111111111111111"); got != "**** **** **** 1111" {
		t.Fatalf("Mask: got %q", got)
	}
	if got := Mask("9876543210987654"); got != "**** **** **** 7654" {
		t.Fatalf("Mask: got %q", got)
	}
	for _, short := range []string{"", "1", "12", "123"} {
		if got := Mask(short); got != "****" {
			t.Fatalf("Mask(%q): got %q, want ****", short, got)
		}
	}
	// Masking a masked value keeps only the same trailing digits visible.
	if got := Mask(Mask("4111111111111111")); !strings.HasSuffix(got, "1111") {
		t.Fatalf("double mask lost trailing digits: %q", got)
	}
}

func TestGenerateNumber(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		n, err := GenerateNumber()
		if err != nil {
			t.Fatalf("GenerateNumber: %v", err)
		}
		if len(n) != NumberLen {
			t.Fatalf("len=%d, want=%d", len(n), NumberLen)
		}
		for _, r := range n {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in generated number %q", n)
			}
		}
		seen[n] = true
	}
	if len(seen) < 2 {
		t.Fatalf("ten draws produced one unique number, looks non-random")
	}
}

func TestGenerateNumber_AllDigitsReachable(t *testing.T) {
	t.Parallel()

	// 200 numbers is 3200 digits; a missing digit at that sample size
	// means the draw is not uniform over 0-9.
	counts := [10]int{}
	for i := 0; i < 200; i++ {
		n, err := GenerateNumber()
		if err != nil {
			t.Fatalf("GenerateNumber: %v", err)
		}
		for _, r := range n {
			counts[r-'0']++
		}
	}
	for d, c := range counts {
		if c == 0 {
			t.Fatalf("digit %d never drawn", d)
		}
	}
}
