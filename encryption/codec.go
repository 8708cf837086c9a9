package encryption

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"google.golang.org/protobuf/proto"
)

const (
	// payloadEncoding marks a payload as carrying an encrypted envelope.
	payloadEncoding = "binary/encrypted"

	// MetadataEncryptionKeyID is the payload metadata entry naming the key
	// a payload was sealed with.
	MetadataEncryptionKeyID = "encryption-key-id"
)

// Options defines the parameters for encrypting workflow payloads. Key is the
// base64 encoded 32-byte symmetric key. KeyID is an opaque tag identifying
// the key on the wire; when empty, a fingerprint of the key is used.
type Options struct {
	Key   string `yaml:"key" mapstructure:"key"`
	KeyID string `yaml:"key_id,omitempty" mapstructure:"key_id"`
}

// Codec is a converter.PayloadCodec that transparently encrypts payloads on
// encode and decrypts them on decode. Payloads not marked with the encrypted
// encoding pass through decode unchanged, so peers without the codec remain
// interoperable.
type Codec struct {
	key   []byte
	keyID string
}

// NewCodec validates the configured key and returns a ready codec.
func NewCodec(opts Options) (*Codec, error) {
	key, err := decodeKey(opts.Key)
	if err != nil {
		return nil, err
	}
	keyID := opts.KeyID
	if keyID == "" {
		sum := sha256.Sum256(key)
		keyID = hex.EncodeToString(sum[:4])
	}
	return &Codec{key: key, keyID: keyID}, nil
}

// Encode implements converter.PayloadCodec.
func (c *Codec) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	encoded := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		data, err := proto.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize payload: %w", err)
		}
		sealed, err := encrypt(data, c.key)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt payload: %w", err)
		}
		encoded[i] = &commonpb.Payload{
			Metadata: map[string][]byte{
				converter.MetadataEncoding: []byte(payloadEncoding),
				MetadataEncryptionKeyID:    []byte(c.keyID),
			},
			Data: sealed,
		}
	}
	return encoded, nil
}

// Decode implements converter.PayloadCodec.
func (c *Codec) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	decoded := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		if string(p.Metadata[converter.MetadataEncoding]) != payloadEncoding {
			decoded[i] = p
			continue
		}
		if id := string(p.Metadata[MetadataEncryptionKeyID]); id != c.keyID {
			return nil, &DecryptionError{Reason: fmt.Sprintf("unknown encryption key id %q", id)}
		}
		data, err := decrypt(p.Data, c.key)
		if err != nil {
			return nil, err
		}
		inner := &commonpb.Payload{}
		if err := proto.Unmarshal(data, inner); err != nil {
			return nil, &DecryptionError{Reason: "malformed decrypted payload", Err: err}
		}
		decoded[i] = inner
	}
	return decoded, nil
}
