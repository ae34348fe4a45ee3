package models

// EnvelopeVersion is the current envelope format version.
const EnvelopeVersion = 1

// EnvelopeAlgorithm identifies the only supported AEAD construction.
const EnvelopeAlgorithm = "aes-256-gcm"

// Envelope wraps one encrypted field value. IV and Ciphertext are hex-encoded;
// the ciphertext carries the GCM authentication tag.
type Envelope struct {
	Version    int    `json:"version"`
	Algorithm  string `json:"algorithm"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}

// Field is a tagged union of the two shapes a sensitive string field can take
// on the wire and at rest: plaintext (legacy records, encryption disabled) or
// an encryption envelope. The union is resolved once at the serialization
// boundary; business logic checks Encrypted() instead of probing map keys.
type Field struct {
	Plain string
	Enc   *Envelope
}

// PlainField wraps a plaintext value.
func PlainField(s string) Field {
	return Field{Plain: s}
}

// EncryptedField wraps an envelope.
func EncryptedField(e *Envelope) Field {
	return Field{Enc: e}
}

// Encrypted reports whether the field carries an envelope rather than
// plaintext.
func (f Field) Encrypted() bool {
	return f.Enc != nil
}
