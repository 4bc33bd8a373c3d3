package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "spsync"

	// ClientSecretKey names the stored Entra application secret.
	ClientSecretKey = "azure-client-secret"

	probeKey = "spsync-probe"
)

// ErrNotFound is returned when the requested secret is not stored.
var ErrNotFound = errors.New("secret not found")

// Backend defines the interface for secret storage
type Backend interface {
	Save(name string, value string) error
	Load(name string) (string, error)
	Delete(name string) error
	Name() string
}

// Store wraps the selected backend. The system keyring is preferred; when it
// is unavailable (headless containers, stripped-down CI) secrets fall back to
// an AES-GCM encrypted file under the config directory.
type Store struct {
	backend Backend
	warning string
}

// NewStore selects a backend and returns the store.
func NewStore() (*Store, error) {
	if keyringAvailable() {
		return &Store{backend: &keyringBackend{}}, nil
	}

	dir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("secret storage unavailable: %w", err)
	}
	fb, err := newEncryptedFileBackend(dir)
	if err != nil {
		return nil, fmt.Errorf("secret storage unavailable: %w", err)
	}
	return &Store{
		backend: fb,
		warning: "system keyring not available, using encrypted file storage",
	}, nil
}

// SaveClientSecret stores the Entra client secret.
func (s *Store) SaveClientSecret(value string) error {
	return s.backend.Save(ClientSecretKey, value)
}

// LoadClientSecret returns the stored client secret, or ErrNotFound.
func (s *Store) LoadClientSecret() (string, error) {
	return s.backend.Load(ClientSecretKey)
}

// DeleteClientSecret removes the stored client secret. Deleting a secret that
// was never stored is not an error.
func (s *Store) DeleteClientSecret() error {
	err := s.backend.Delete(ClientSecretKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// BackendName reports which backend is in use.
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// Warning returns a human-readable note about backend selection, if any.
func (s *Store) Warning() string {
	return s.warning
}

// keyringAvailable tests if the system keyring works by round-tripping a
// probe entry.
func keyringAvailable() bool {
	if err := keyring.Set(serviceName, probeKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, probeKey)
	return true
}

// configDir returns the directory for fallback secret files.
func configDir() (string, error) {
	if dir := os.Getenv("SPSYNC_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "spsync"), nil
}

// keyringBackend uses the system keyring
type keyringBackend struct{}

func (b *keyringBackend) Save(name, value string) error {
	return keyring.Set(serviceName, name, value)
}

func (b *keyringBackend) Load(name string) (string, error) {
	value, err := keyring.Get(serviceName, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return value, err
}

func (b *keyringBackend) Delete(name string) error {
	err := keyring.Delete(serviceName, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (b *keyringBackend) Name() string {
	return "system-keyring"
}

// encryptedFileBackend stores secrets in AES-GCM encrypted files
type encryptedFileBackend struct {
	baseDir string
	key     []byte
}

func newEncryptedFileBackend(baseDir string) (*encryptedFileBackend, error) {
	key, err := getOrCreateEncryptionKey(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key: %w", err)
	}
	return &encryptedFileBackend{baseDir: baseDir, key: key}, nil
}

func (b *encryptedFileBackend) Save(name, value string) error {
	encrypted, err := b.encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	path := b.secretFilePath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, encrypted, 0600)
}

func (b *encryptedFileBackend) Load(name string) (string, error) {
	encrypted, err := os.ReadFile(b.secretFilePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	plaintext, err := b.decrypt(encrypted)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (b *encryptedFileBackend) Delete(name string) error {
	err := os.Remove(b.secretFilePath(name))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (b *encryptedFileBackend) Name() string {
	return "encrypted-file"
}

func (b *encryptedFileBackend) secretFilePath(name string) string {
	return filepath.Join(b.baseDir, "secrets", name+".enc")
}

// encrypt encrypts data using AES-GCM
func (b *encryptedFileBackend) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt decrypts data using AES-GCM
func (b *encryptedFileBackend) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("invalid ciphertext")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertext = ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return plaintext, nil
}

// getOrCreateEncryptionKey generates or loads the file backend's key
func getOrCreateEncryptionKey(baseDir string) ([]byte, error) {
	keyFile := filepath.Join(baseDir, ".keyfile")

	if data, err := os.ReadFile(keyFile); err == nil {
		key, err := base64.StdEncoding.DecodeString(string(data))
		if err == nil && len(key) == 32 {
			return key, nil
		}
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(keyFile, []byte(encoded), 0600); err != nil {
		return nil, err
	}

	return key, nil
}
