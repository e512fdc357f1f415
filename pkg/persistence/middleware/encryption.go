package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// EnvelopeKey is the metadata key holding the ciphertext of an encrypted conversation.
const EnvelopeKey = "__encrypted__"

// ErrNotEncrypted is returned when a stored record carries no ciphertext.
var ErrNotEncrypted = errors.New("conversation is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt a record.
	FallbackKeys [][]byte
}

// ParseKey decodes a 32-byte key given as hex or standard base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if k, err := hex.DecodeString(s); err == nil && len(k) == 32 {
		return k, nil
	}
	if k, err := base64.StdEncoding.DecodeString(s); err == nil && len(k) == 32 {
		return k, nil
	}
	return nil, errors.New("encryption key must be 32 bytes, hex or base64 encoded")
}

type encryptionMiddleware struct {
	next   ports.ConversationStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts conversations using AES-GCM.
//
// The stored envelope keeps only what the backend needs to index it (session id, status
// and timestamps); the message log, field values and metadata live in the ciphertext.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.ConversationStore) ports.ConversationStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) seal(conv *domain.Conversation) (*domain.Conversation, error) {
	plainText, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt conversation: %w", err)
	}

	envelope := domain.NewConversation(conv.SessionID, conv.CreatedAt)
	envelope.Status = conv.Status
	envelope.UpdatedAt = conv.UpdatedAt
	envelope.EndedAt = conv.EndedAt
	envelope.Metadata[EnvelopeKey] = base64.StdEncoding.EncodeToString(ciphertext)
	return envelope, nil
}

func (m *encryptionMiddleware) open(envelope *domain.Conversation) (*domain.Conversation, error) {
	encoded, ok := envelope.Metadata[EnvelopeKey].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEncrypted, envelope.SessionID)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt conversation: %w", err)
	}

	var conv domain.Conversation
	if err := json.Unmarshal(plainText, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted conversation: %w", err)
	}
	return &conv, nil
}

func (m *encryptionMiddleware) Create(ctx context.Context, conv *domain.Conversation) error {
	envelope, err := m.seal(conv)
	if err != nil {
		return err
	}
	return m.next.Create(ctx, envelope)
}

func (m *encryptionMiddleware) Put(ctx context.Context, conv *domain.Conversation) error {
	envelope, err := m.seal(conv)
	if err != nil {
		return err
	}
	return m.next.Put(ctx, envelope)
}

func (m *encryptionMiddleware) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	envelope, err := m.next.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.open(envelope)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error) {
	envelopes, err := m.next.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Conversation, 0, len(envelopes))
	for _, e := range envelopes {
		conv, err := m.open(e)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (m *encryptionMiddleware) Count(ctx context.Context, status domain.Status) (int, error) {
	return m.next.Count(ctx, status)
}

func (m *encryptionMiddleware) Prune(ctx context.Context, before time.Time) (int, error) {
	return m.next.Prune(ctx, before)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{activeKey}, fallbackKeys...) {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
