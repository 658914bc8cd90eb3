package action

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	AlgorithmBase64            = "base64"
	AlgorithmXChaCha20Poly1305 = "xchacha20poly1305"
)

// NewAEAD builds the webhook AEAD from a hex encoded 32 byte key.
func NewAEAD(hexKey string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid aead key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("invalid aead key: %w", err)
	}
	return aead, nil
}

// obfuscate wraps the payload in base64. Anyone can decode it. Envelopes selected through the
// legacy encryption flag keep the "encrypted" marker older receivers check for.
func obfuscate(payload interface{}, legacy bool) (map[string]interface{}, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	envelope := map[string]interface{}{
		"envelope":  string(EnvelopeObfuscation),
		"algorithm": AlgorithmBase64,
		"data":      base64.StdEncoding.EncodeToString(data),
	}
	if legacy {
		envelope["encrypted"] = true
	}
	return envelope, nil
}

// seal encrypts the payload. additionalData is authenticated and sent in clear as "aad".
func seal(aead cipher.AEAD, payload interface{}, additionalData string) (map[string]interface{}, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, []byte(additionalData))
	return map[string]interface{}{
		"envelope":  string(EnvelopeAEAD),
		"algorithm": AlgorithmXChaCha20Poly1305,
		"nonce":     base64.StdEncoding.EncodeToString(nonce),
		"aad":       additionalData,
		"data":      base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Open reverses an aead envelope produced by the webhook action.
func Open(aead cipher.AEAD, envelope map[string]interface{}) ([]byte, error) {
	nonceStr, _ := envelope["nonce"].(string)
	dataStr, _ := envelope["data"].(string)
	aad, _ := envelope["aad"].(string)

	nonce, err := base64.StdEncoding.DecodeString(nonceStr)
	if err != nil || len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid envelope nonce")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope data: %w", err)
	}

	return aead.Open(nil, nonce, ciphertext, []byte(aad))
}
