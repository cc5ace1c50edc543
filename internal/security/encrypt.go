// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security encrypts secrets stored in nanochat's config file.
//
// Values are sealed with AES-256-GCM and stored as "ENC:" followed by
// base64(nonce|ciphertext|tag). The key is either a random master key kept in
// master.key, or derived from a passphrase with PBKDF2-SHA-256 and the salt in
// master.salt. Both files live in the config directory with 0600 permissions.
//
// # Usage
//
//	kr, err := security.Open(dir, os.Getenv("NANOCHAT_PASSPHRASE"))
//	sealed, err := kr.EncryptString(apiKey)
//	plain, err := kr.DecryptString(sealed)
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/thejudge22/nanochat-desktop/internal/util"
)

// EncryptedPrefix marks a sealed value.
const EncryptedPrefix = "ENC:"

const (
	// NonceSize is the GCM nonce length.
	NonceSize = 12
	// KeySize selects AES-256.
	KeySize = 32
	// SaltSize is the PBKDF2 salt length.
	SaltSize = 32
	// PBKDF2Iterations is the key derivation work factor.
	PBKDF2Iterations = 600000
)

// Key file names inside the config directory.
const (
	KeyFile  = "master.key"
	SaltFile = "master.salt"
)

var (
	// ErrInvalidCiphertext is returned for values too short to hold a nonce.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrDecryptionFailed is returned when authentication fails, usually a
	// wrong passphrase or a replaced key file.
	ErrDecryptionFailed = errors.New("decryption failed: wrong key or corrupted value")
)

// ZeroBytes overwrites key material.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// DeriveKey derives an AES key from a passphrase with PBKDF2-SHA-256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// IsEncrypted reports whether value carries the ENC: prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// =============================================================================
// KEYRING
// =============================================================================

// Keyring seals and opens values with one key. Safe for concurrent use.
type Keyring struct {
	aead cipher.AEAD
}

// Open loads or creates the key in dir. A non-empty passphrase selects the
// PBKDF2 key; otherwise the random master key is used.
func Open(dir, passphrase string) (*Keyring, error) {
	var (
		key []byte
		err error
	)
	if passphrase != "" {
		var salt []byte
		salt, err = readOrCreate(filepath.Join(dir, SaltFile), SaltSize)
		if err == nil {
			key = DeriveKey(passphrase, salt)
		}
	} else {
		key, err = readOrCreate(filepath.Join(dir, KeyFile), KeySize)
	}
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)
	return NewKeyring(key)
}

// NewKeyring builds a keyring from a raw AES-256 key.
func NewKeyring(key []byte) (*Keyring, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return &Keyring{aead: gcm}, nil
}

// readOrCreate returns the contents of path, writing size random bytes there
// first if it does not exist.
func readOrCreate(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != size {
			return nil, fmt.Errorf("%s: expected %d bytes, found %d", path, size, len(data))
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data = make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", filepath.Base(path), err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// Encrypt returns nonce|ciphertext|tag.
func (k *Keyring) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a value produced by Encrypt.
func (k *Keyring) Decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize {
		return nil, ErrInvalidCiphertext
	}
	plaintext, err := k.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptString seals s and adds the ENC: prefix. Already sealed values are
// returned unchanged.
func (k *Keyring) EncryptString(s string) (string, error) {
	if IsEncrypted(s) {
		return s, nil
	}
	sealed, err := k.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString opens an ENC: value. Plain values are returned as is.
func (k *Keyring) DecryptString(s string) (string, error) {
	if !IsEncrypted(s) {
		return s, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid base64 encoding: %w", err)
	}
	plaintext, err := k.Decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
