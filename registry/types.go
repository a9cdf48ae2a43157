package registry

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the length in bytes of a material content hash.
const HashSize = 32

// Hash is a 32-byte content digest. It is the deduplication key of the registry.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash. It reports false if len(b) != HashSize.
func HashFromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != HashSize {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// ParseHash decodes a 64-character hex string.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Hash{}, fmt.Errorf("registry: invalid hash hex: %w", err)
	}
	h, ok := HashFromBytes(b)
	if !ok {
		return Hash{}, fmt.Errorf("registry: hash must be %d bytes, got %d", HashSize, len(b))
	}
	return h, nil
}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) Bytes() []byte { return append([]byte(nil), h[:]...) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Principal is an authenticated caller identity. The registry trusts it verbatim.
type Principal string

// BurnPrincipal is the reserved null principal. It can never become the authority.
const BurnPrincipal Principal = "SP000000000000000000002Q6VF78"

// Format is the media format of a material.
type Format string

const (
	FormatPDF   Format = "PDF"
	FormatVideo Format = "VIDEO"
	FormatText  Format = "TEXT"
	FormatAudio Format = "AUDIO"
)

// Formats lists every accepted format.
var Formats = []Format{FormatPDF, FormatVideo, FormatText, FormatAudio}

// Valid reports whether f is one of Formats.
func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatVideo, FormatText, FormatAudio:
		return true
	default:
		return false
	}
}

// Material is one registered artifact.
type Material struct {
	ID          uint64    `json:"id"`
	ContentHash Hash      `json:"contentHash"`
	Title       string    `json:"title"`
	Author      Principal `json:"author"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Language    string    `json:"language"`
	Format      Format    `json:"format"`
	Timestamp   uint64    `json:"timestamp"`
	Active      bool      `json:"active"`
}

// Registration carries the caller-supplied fields of RegisterMaterial.
//
// Hash and Format are kept loose (byte slice, plain string) so that malformed
// input reaches validation and is reported with the right code.
type Registration struct {
	Hash        []byte
	Title       string
	Description string
	Category    string
	Language    string
	Format      string
}

// Call is the context the host supplies with every state transition.
type Call struct {
	Caller Principal `json:"caller"`
	// Height is the logical time of the call. It is used verbatim as a timestamp.
	Height uint64 `json:"height"`
}

// Transfer instructs the settlement layer to move Amount from From to To.
type Transfer struct {
	Amount uint64    `json:"amount"`
	From   Principal `json:"from"`
	To     Principal `json:"to"`
}

// Reverse returns the transfer that undoes t.
func (t Transfer) Reverse() Transfer {
	return Transfer{Amount: t.Amount, From: t.To, To: t.From}
}

// Receipt is the result of a successful registration.
type Receipt struct {
	ID uint64 `json:"id"`
	// Transfer is nil when the registration fee is zero.
	Transfer *Transfer `json:"transfer,omitempty"`
}

// Config is a read-only view of the registry configuration.
type Config struct {
	NextMaterialID  uint64    `json:"nextMaterialID"`
	MaxMaterials    uint64    `json:"maxMaterials"`
	RegistrationFee uint64    `json:"registrationFee"`
	Authority       Principal `json:"authority,omitempty"`
}

// AuthoritySet reports whether the authority has been configured.
func (c Config) AuthoritySet() bool { return c.Authority != "" }
