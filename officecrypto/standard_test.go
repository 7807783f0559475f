package officecrypto

import (
	"crypto/aes"
	"crypto/sha1"
	"testing"
)

func TestExpandKeyTruncatesWhenDigestIsLongEnough(t *testing.T) {
	digest := sha1.Sum([]byte("anything"))
	key := expandKey(digest[:], 16)
	if len(key) != 16 {
		t.Fatalf("expected 16-byte key, got %d", len(key))
	}
	if string(key) != string(digest[:16]) {
		t.Fatalf("expected key to be digest prefix")
	}
}

func TestExpandKeyExpandsPastOneDigest(t *testing.T) {
	digest := sha1.Sum([]byte("anything"))
	key := expandKey(digest[:], 32) // AES-256 needs more than one SHA-1 digest
	if len(key) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(key))
	}
}

func TestPaddedAESLen(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 0},
		{16, 16},
		{20, 32},
		{1, 16},
	}
	for _, c := range cases {
		if got := paddedAESLen(c.in); got != c.want {
			t.Errorf("paddedAESLen(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	header := &EncryptionHeader{AlgID: calgAES128, AlgIDHash: calgSHA1, KeyBits: 128}
	salt := []byte("0123456789abcdef")

	key := DeriveKey(header, &EncryptionVerifier{Salt: salt}, "correct horse")

	verifierPlain := []byte("0123456789abcdef")
	hash := sha1.Sum(verifierPlain)
	hashPlain := make([]byte, paddedAESLen(len(hash)))
	copy(hashPlain, hash[:])

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	encVerifier := make([]byte, 16)
	block.Encrypt(encVerifier, verifierPlain)
	encHash := make([]byte, len(hashPlain))
	for off := 0; off < len(hashPlain); off += 16 {
		block.Encrypt(encHash[off:off+16], hashPlain[off:off+16])
	}

	verifier := &EncryptionVerifier{
		Salt:                  salt,
		EncryptedVerifier:     encVerifier,
		VerifierHashSize:      uint32(len(hash)),
		EncryptedVerifierHash: encHash,
	}

	goodKey := DeriveKey(header, verifier, "correct horse")
	ok, err := VerifyPassword(header, verifier, goodKey)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected correct password to verify")
	}

	badKey := DeriveKey(header, verifier, "wrong password")
	ok, err = VerifyPassword(header, verifier, badKey)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected wrong password to fail verification")
	}
}
