// Package signature authenticates provider webhooks. A payload is trusted
// only if its signature verifies against the configured public key.
package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"payhook/internal/types"
)

// ErrNoPublicKey means no trusted key is configured; every verification fails.
var ErrNoPublicKey = errors.New("signature: public key not configured")

// Verifier checks SHA-256 signatures made with the provider's private key.
// RSA keys use PKCS#1 v1.5; ECDSA keys use ASN.1 encoded signatures.
type Verifier struct {
	key    crypto.PublicKey
	keyErr error
	logger types.Logger
}

// NewVerifier parses publicKey once. An empty or unparseable key yields a
// Verifier that rejects everything; the parse error is kept for KeyError.
func NewVerifier(publicKey types.SecretString, logger types.Logger) *Verifier {
	v := &Verifier{logger: logger}
	if publicKey.IsEmpty() {
		v.keyErr = ErrNoPublicKey
	} else {
		v.key, v.keyErr = ParsePublicKey(publicKey.Unmask())
	}
	if v.keyErr != nil && logger != nil {
		logger.Error("signature verifier has no usable public key; all webhooks will be rejected", "error", v.keyErr)
	}
	return v
}

// KeyError reports why the verifier cannot accept anything, or nil.
func (v *Verifier) KeyError() error {
	return v.keyErr
}

// Verify reports whether signature (base64) is valid for payload. It never
// returns true without a configured key, and all failures collapse to false.
func (v *Verifier) Verify(payload []byte, signature string) bool {
	if v.key == nil {
		v.warn("signature rejected: no public key configured", v.keyErr)
		return false
	}

	sig, err := decodeSignature(signature)
	if err != nil {
		v.warn("signature rejected: undecodable signature", err)
		return false
	}

	digest := sha256.Sum256(payload)

	switch pub := v.key.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
			v.warn("signature rejected: RSA verification failed", err)
			return false
		}
		return true
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, digest[:], sig) {
			v.warn("signature rejected: ECDSA verification failed", nil)
			return false
		}
		return true
	default:
		v.warn("signature rejected: unsupported key type", fmt.Errorf("%T", pub))
		return false
	}
}

func (v *Verifier) warn(msg string, err error) {
	if v.logger == nil {
		return
	}
	if err != nil {
		v.logger.Warn(msg, "error", err.Error())
		return
	}
	v.logger.Warn(msg)
}

// ParsePublicKey accepts a PEM block (PKIX or PKCS#1) or the bare base64
// body of a PKIX key, as the provider hands it out. Escaped "\n" sequences
// from single-line env values are unescaped first.
func ParsePublicKey(material string) (crypto.PublicKey, error) {
	material = strings.TrimSpace(strings.ReplaceAll(material, `\n`, "\n"))
	if material == "" {
		return nil, ErrNoPublicKey
	}
	if !strings.Contains(material, "-----BEGIN") {
		material = "-----BEGIN PUBLIC KEY-----\n" + material + "\n-----END PUBLIC KEY-----"
	}

	block, _ := pem.Decode([]byte(material))
	if block == nil {
		return nil, errors.New("signature: public key is not valid PEM or base64")
	}

	if block.Type == "RSA PUBLIC KEY" {
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("signature: parse PKCS#1 public key: %w", err)
		}
		return pub, nil
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("signature: parse PKIX public key: %w", err)
	}
	switch pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return pub, nil
	default:
		return nil, fmt.Errorf("signature: unsupported public key type %T", pub)
	}
}

// decodeSignature accepts standard or URL-safe base64, padded or not.
func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, errors.New("signature is empty")
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(signature); err == nil && len(b) > 0 {
			return b, nil
		}
	}
	return nil, errors.New("signature is not base64")
}
