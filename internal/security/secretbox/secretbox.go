// Package secretbox sella payloads antes de persistirlos en backends
// compartidos (Redis). Usa NaCl secretbox (XSalsa20-Poly1305) con una clave
// maestra de 32 bytes tomada de SECRETBOX_MASTER_KEY (base64).
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	envVar            = "SECRETBOX_MASTER_KEY"
	nonceSize         = 24
	requiredKeyLength = 32
)

var (
	masterKey     [requiredKeyLength]byte
	keyLoaded     bool
	masterKeyOnce sync.Once
	loadErr       error
	mu            sync.RWMutex
)

// ensureLoaded carga la clave maestra desde SECRETBOX_MASTER_KEY una sola vez.
// Si la clave ya fue seteada (tests), no toca el entorno.
func ensureLoaded() error {
	mu.RLock()
	loaded := keyLoaded
	mu.RUnlock()
	if loaded {
		return nil
	}
	masterKeyOnce.Do(func() {
		kb64 := strings.TrimSpace(os.Getenv(envVar))
		if kb64 == "" {
			loadErr = fmt.Errorf("%s no seteada; genere una clave con: openssl rand -base64 32", envVar)
			return
		}
		k, err := base64.StdEncoding.DecodeString(kb64)
		if err != nil {
			loadErr = fmt.Errorf("decode %s: %w", envVar, err)
			return
		}
		if len(k) != requiredKeyLength {
			loadErr = fmt.Errorf("%s debe decodificar a %d bytes, obtuvo %d", envVar, requiredKeyLength, len(k))
			return
		}
		mu.Lock()
		copy(masterKey[:], k)
		keyLoaded = true
		mu.Unlock()
	})
	return loadErr
}

// Ready expone si la clave está cargada (útil para healthchecks).
func Ready() bool {
	mu.RLock()
	defer mu.RUnlock()
	return keyLoaded
}

// Seal cifra plaintext y devuelve base64(nonce||ciphertext).
func Seal(plaintext []byte) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	mu.RLock()
	key := masterKey
	mu.RUnlock()

	out := secretbox.Seal(nonce[:], plaintext, &nonce, &key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open recibe base64(nonce||ciphertext) y devuelve el plaintext.
func Open(sealed string) ([]byte, error) {
	if err := ensureLoaded(); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed payload: %w", err)
	}
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("sealed payload demasiado corto: %d bytes", len(raw))
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	mu.RLock()
	key := masterKey
	mu.RUnlock()

	pt, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &key)
	if !ok {
		return nil, fmt.Errorf("secretbox auth/decrypt failed")
	}
	return pt, nil
}

// --- Helpers para tests ---

// UnsafeResetForTests borra estado interno. Usar sólo en tests.
func UnsafeResetForTests() {
	mu.Lock()
	masterKey = [requiredKeyLength]byte{}
	keyLoaded = false
	mu.Unlock()
	masterKeyOnce = sync.Once{}
	loadErr = nil
}

// UnsafeSetMasterKeyForTests setea una clave cruda (32 bytes) en tests.
func UnsafeSetMasterKeyForTests(k []byte) error {
	if len(k) != requiredKeyLength {
		return fmt.Errorf("clave inválida para test: se requieren %d bytes", requiredKeyLength)
	}
	UnsafeResetForTests()
	mu.Lock()
	copy(masterKey[:], k)
	keyLoaded = true
	mu.Unlock()
	return nil
}
