package officecrypto

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/richardlehane/mscfb"
)

// ErrInvalidPassword is returned when password fails EncryptionVerifier's
// check.
var ErrInvalidPassword = fmt.Errorf("officecrypto: invalid password")

// IsEncrypted reports whether r looks like an OLE2 compound-file container
// holding an EncryptionInfo stream, the shape Excel saves a
// password-protected workbook as (a plain .xlsx is a ZIP, not a compound
// file, and never reaches this check in practice).
func IsEncrypted(r io.ReaderAt) bool {
	doc, err := mscfb.New(r)
	if err != nil {
		return false
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name == "EncryptionInfo" {
			return true
		}
	}
	return false
}

// Decrypt opens the OLE2 compound-file container in r, reads its
// EncryptionInfo and EncryptedPackage streams, and returns the decrypted
// OOXML package bytes (the plain ZIP a caller would otherwise have read
// directly from an unencrypted .xlsx).
func Decrypt(r io.ReaderAt, password string) ([]byte, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, fmt.Errorf("officecrypto: %w", err)
	}

	var infoBytes, packageBytes []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptionInfo":
			buf := make([]byte, entry.Size)
			if _, err := io.ReadFull(doc, buf); err != nil {
				return nil, fmt.Errorf("officecrypto: read EncryptionInfo: %w", err)
			}
			infoBytes = buf
		case "EncryptedPackage":
			buf := make([]byte, entry.Size)
			if _, err := io.ReadFull(doc, buf); err != nil {
				return nil, fmt.Errorf("officecrypto: read EncryptedPackage: %w", err)
			}
			packageBytes = buf
		}
	}
	if infoBytes == nil {
		return nil, fmt.Errorf("officecrypto: no EncryptionInfo stream found")
	}
	if packageBytes == nil {
		return nil, fmt.Errorf("officecrypto: no EncryptedPackage stream found")
	}

	header, verifier, err := ParseEncryptionInfo(infoBytes)
	if err != nil {
		return nil, err
	}
	key := DeriveKey(header, verifier, password)
	ok, err := VerifyPassword(header, verifier, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPassword
	}
	return decryptPackage(key, packageBytes)
}

// decryptPackage strips EncryptedPackage's 8-byte little-endian original
// size prefix, AES-ECB-decrypts the remainder under the block-0 key, and
// trims the result back to that original size (the decrypted buffer is
// padded out to a full AES block).
func decryptPackage(key, packageBytes []byte) ([]byte, error) {
	if len(packageBytes) < 8 {
		return nil, fmt.Errorf("officecrypto: EncryptedPackage too short")
	}
	originalSize := binary.LittleEndian.Uint64(packageBytes[0:8])
	ciphertext := packageBytes[8:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("officecrypto: %w", err)
	}
	plain := aesECBDecryptStream(block, ciphertext)
	if originalSize > uint64(len(plain)) {
		return nil, fmt.Errorf("officecrypto: EncryptedPackage originalSize exceeds decrypted length")
	}
	return bytes.Clone(plain[:originalSize]), nil
}
