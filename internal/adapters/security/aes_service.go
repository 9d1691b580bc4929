package security

import (
	"PayoutRecon/internal/core/ports"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// ErrCiphertextTooShort is returned for sealed values shorter than a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext is too short")

// aesService implements ports.FieldCipher using AES-GCM. Sealed values are
// base64(nonce || ciphertext) with the owner ID as additional data.
type aesService struct {
	gcm cipher.AEAD
	log zerolog.Logger
}

// Ensure compliance
var _ ports.FieldCipher = (*aesService)(nil)

// NewAESService creates a field cipher from a 16 or 32 byte key.
func NewAESService(encryptionKey []byte, baseLogger *zerolog.Logger) (ports.FieldCipher, error) {
	if len(encryptionKey) != 16 && len(encryptionKey) != 32 {
		return nil, errors.New("encryptionKey must be 16 or 32 bytes")
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("could not create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("could not create GCM: %w", err)
	}

	log := baseLogger.With().Str("component", "field_cipher").Logger()
	log.Info().Msg("Field cipher initialized")

	return &aesService{gcm: gcm, log: log}, nil
}

// Seal encrypts plaintext for owner.
func (s *aesService) Seal(plaintext, owner string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		s.log.Error().Err(err).Msg("Failed to generate nonce")
		return "", fmt.Errorf("could not generate nonce: %w", err)
	}

	sealed := s.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(owner))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal for the same owner.
func (s *aesService) Open(sealed, owner string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("could not decode sealed value: %w", err)
	}

	nonceSize := s.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, []byte(owner))
	if err != nil {
		s.log.Warn().Err(err).Str("owner", owner).Msg("Failed to open sealed value (tampered, corrupt or wrong owner)")
		return "", fmt.Errorf("could not decrypt: %w", err)
	}

	return string(plaintext), nil
}
