// Package signing issues and checks the HMAC credentials printed on ticket
// QR codes.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrMalformed is returned by Decode for input that is not a credential.
	ErrMalformed = errors.New("signing: malformed credential")
	// ErrNoSecret is returned by New for an empty secret.
	ErrNoSecret = errors.New("signing: empty secret")
)

// Payload is the signed part of a credential.  Field order is part of the
// signature: the MAC is computed over json.Marshal(Payload).
type Payload struct {
	TokenID uint64 `json:"tokenId"`
	Owner   string `json:"owner"`
}

// Credential is what the QR code encodes.
type Credential struct {
	Payload   Payload `json:"payload"`
	Signature string  `json:"signature"`
}

// Signer holds the process-wide HMAC key.
type Signer struct {
	secret []byte
}

func New(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) mac(p Payload) []byte {
	body, _ := json.Marshal(p) // two scalar fields, cannot fail
	m := hmac.New(sha256.New, s.secret)
	m.Write(body)
	return m.Sum(nil)
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical payload.
func (s *Signer) Sign(p Payload) string {
	return hex.EncodeToString(s.mac(p))
}

// Verify reports whether sig is exactly the lowercase hex MAC of p.
// Comparison is constant time.
func (s *Signer) Verify(p Payload, sig string) bool {
	return hmac.Equal([]byte(sig), []byte(s.Sign(p)))
}

// Issue signs p and renders the QR string.
func (s *Signer) Issue(p Payload) (string, error) {
	return Encode(Credential{Payload: p, Signature: s.Sign(p)})
}

// Encode renders c as the JSON text placed in the QR code.
func Encode(c Credential) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("signing: encode credential: %w", err)
	}
	return string(b), nil
}

// Decode parses a scanned QR string.  It checks shape only; the signature
// is checked by Verify.  Unknown fields are ignored, anything after the
// JSON object is not.
func Decode(raw string) (Credential, error) {
	var c Credential
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&c); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Credential{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	if c.Signature == "" || c.Payload.Owner == "" {
		return Credential{}, ErrMalformed
	}
	return c, nil
}
