package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNoKey is returned when no current encryption key is configured.
	ErrNoKey = errors.New("secure: no encryption key configured")
	// ErrDecrypt is returned when no configured key can open a ciphertext.
	ErrDecrypt = errors.New("secure: unable to decrypt with any available key")
)

// Key is a versioned AES-256 key written as env.version.base64key.
type Key struct {
	Env     string
	Version string
	Key     []byte
}

// ParseKey decodes a key string and checks it belongs to appEnv.
func ParseKey(s, appEnv string) (*Key, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("secure: key must look like env.version.base64key")
	}
	if appEnv != "" && parts[0] != appEnv {
		return nil, fmt.Errorf("secure: key is for env %q, running in %q", parts[0], appEnv)
	}
	raw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("secure: decode key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secure: key must be 32 bytes, got %d", len(raw))
	}
	return &Key{Env: parts[0], Version: parts[1], Key: raw}, nil
}

// GenerateKey returns a fresh key string for env and version.
func GenerateKey(env, version string) (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("secure: generate key: %w", err)
	}
	return env + "." + version + "." + base64.StdEncoding.EncodeToString(raw), nil
}

// Keyring encrypts with the current key and decrypts with the current or
// previous key.
type Keyring struct {
	current  *Key
	previous *Key
}

// NewKeyring parses the configured keys. An empty current key yields a
// keyring whose operations fail with ErrNoKey.
func NewKeyring(appEnv, current, previous string) (*Keyring, error) {
	kr := &Keyring{}
	if current != "" {
		k, err := ParseKey(current, appEnv)
		if err != nil {
			return nil, err
		}
		kr.current = k
	}
	if previous != "" {
		k, err := ParseKey(previous, appEnv)
		if err != nil {
			return nil, err
		}
		kr.previous = k
	}
	return kr, nil
}

type envelope struct {
	V string `json:"v"`
	D string `json:"d"`
}

// Encrypt seals plaintext with the current key. The nonce is prefixed to the
// ciphertext and the result is base64 encoded.
func (kr *Keyring) Encrypt(plaintext string) (string, error) {
	if kr == nil || kr.current == nil {
		return "", ErrNoKey
	}

	gcm, err := newGCM(kr.current.Key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secure: nonce: %w", err)
	}

	payload, err := json.Marshal(envelope{V: kr.current.Version, D: plaintext})
	if err != nil {
		return "", fmt.Errorf("secure: marshal: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, payload, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt, trying the current key first.
func (kr *Keyring) Decrypt(encoded string) (string, error) {
	if kr == nil || kr.current == nil {
		return "", ErrNoKey
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("secure: decode: %w", err)
	}

	if text, err := openWith(sealed, kr.current); err == nil {
		return text, nil
	}
	if kr.previous != nil {
		if text, err := openWith(sealed, kr.previous); err == nil {
			return text, nil
		}
	}
	return "", ErrDecrypt
}

// NeedsRotation reports whether encoded was sealed with a key other than the
// current one.
func (kr *Keyring) NeedsRotation(encoded string) bool {
	if kr == nil || kr.current == nil {
		return false
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	_, err = openWith(sealed, kr.current)
	return err != nil
}

func openWith(sealed []byte, key *Key) (string, error) {
	gcm, err := newGCM(key.Key)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("secure: ciphertext too short")
	}

	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", err
	}

	var env envelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return "", fmt.Errorf("secure: unmarshal: %w", err)
	}
	if env.V != key.Version {
		return "", fmt.Errorf("secure: key version mismatch")
	}
	return env.D, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secure: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secure: gcm: %w", err)
	}
	return gcm, nil
}
