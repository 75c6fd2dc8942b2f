package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

// testKey returns a valid 32-byte key for use in tests.
func testKey() []byte {
	return bytes.Repeat([]byte("k"), 32)
}

func TestNewCipher(t *testing.T) {
	if _, err := NewCipher(testKey()); err != nil {
		t.Fatalf("NewCipher() unexpected error: %v", err)
	}

	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewCipher(make([]byte, n)); err != ErrKeyLengthInvalid {
			t.Errorf("NewCipher(len=%d) error = %v, want ErrKeyLengthInvalid", n, err)
		}
	}
}

func TestNewCipherIsolatesKey(t *testing.T) {
	key := testKey()
	c, err := NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	sealed, _ := c.Seal([]byte("ID,Name\n"))

	for i := range key {
		key[i] = 0
	}

	got, err := c.Open(sealed)
	if err != nil || string(got) != "ID,Name\n" {
		t.Errorf("Open() after mutating key = %q, %v", got, err)
	}
}

func TestSealAndOpen(t *testing.T) {
	c, _ := NewCipher(testKey())

	for _, plaintext := range [][]byte{
		[]byte("ID,Name,Email\n1,Jane Doe,jane@example.com\n"),
		bytes.Repeat([]byte("x"), 1<<16),
		{},
	} {
		sealed, err := c.Seal(plaintext)
		if err != nil {
			t.Fatalf("Seal() error: %v", err)
		}
		if len(plaintext) > 0 && bytes.Contains(sealed, plaintext) {
			t.Error("sealed payload contains the plaintext")
		}
		got, err := c.Open(sealed)
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("Open() = %d bytes, want %d", len(got), len(plaintext))
		}
	}
}

func TestSealNonDeterministic(t *testing.T) {
	c, _ := NewCipher(testKey())
	a, _ := c.Seal([]byte("same"))
	b, _ := c.Seal([]byte("same"))
	if bytes.Equal(a, b) {
		t.Error("two seals of the same plaintext are identical")
	}
}

func TestOpenErrors(t *testing.T) {
	c, _ := NewCipher(testKey())

	if _, err := c.Open([]byte("short")); err != ErrCiphertextCorrupted {
		t.Errorf("Open(short) error = %v, want ErrCiphertextCorrupted", err)
	}

	sealed, _ := c.Seal([]byte("payload"))
	sealed[len(sealed)-1] ^= 0xff
	if _, err := c.Open(sealed); err != ErrDecryptionFailed {
		t.Errorf("Open(tampered) error = %v, want ErrDecryptionFailed", err)
	}
}

func TestOpenWrongKey(t *testing.T) {
	c1, _ := NewCipher(testKey())
	c2, _ := NewCipher(bytes.Repeat([]byte("z"), 32))

	sealed, _ := c1.Seal([]byte("payload"))
	if _, err := c2.Open(sealed); err != ErrDecryptionFailed {
		t.Errorf("Open() with wrong key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestParseKey(t *testing.T) {
	key := testKey()
	for name, encoded := range map[string]string{
		"std":     base64.StdEncoding.EncodeToString(key),
		"url":     base64.URLEncoding.EncodeToString(key),
		"raw url": base64.RawURLEncoding.EncodeToString(key),
		"spaces":  "  " + base64.StdEncoding.EncodeToString(key) + "\n",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := ParseKey(encoded)
			if err != nil || !bytes.Equal(got, key) {
				t.Errorf("ParseKey() = %v, %v", got, err)
			}
		})
	}

	if _, err := ParseKey(base64.StdEncoding.EncodeToString([]byte("short"))); err != ErrKeyLengthInvalid {
		t.Errorf("ParseKey(short) error = %v, want ErrKeyLengthInvalid", err)
	}
	if _, err := ParseKey("%%%not base64%%%"); err != ErrKeyEncoding {
		t.Errorf("ParseKey(garbage) error = %v, want ErrKeyEncoding", err)
	}
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateKey()
	if len(a) != KeySize {
		t.Errorf("len = %d, want %d", len(a), KeySize)
	}
	if bytes.Equal(a, b) {
		t.Error("GenerateKey() returned the same key twice")
	}
}
