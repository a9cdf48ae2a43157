package model

import (
	"encoding/hex"
	"strings"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
)

// Material is the JSON projection of registry.Material. ContentHash is hex;
// CID is the same hash as a CIDv1 (raw, sha2-256).
type Material struct {
	ID          uint64 `json:"id"`
	ContentHash string `json:"contentHash"`
	CID         string `json:"cid"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Format      string `json:"format"`
	Timestamp   uint64 `json:"timestamp"`
	Active      bool   `json:"active"`
}

func FromMaterial(m registry.Material) Material {
	return Material{
		ID:          m.ID,
		ContentHash: m.ContentHash.String(),
		CID:         cidutil.String(m.ContentHash),
		Title:       m.Title,
		Author:      string(m.Author),
		Description: m.Description,
		Category:    m.Category,
		Language:    m.Language,
		Format:      string(m.Format),
		Timestamp:   m.Timestamp,
		Active:      m.Active,
	}
}

type Transfer struct {
	Amount uint64 `json:"amount"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type Receipt struct {
	ID       uint64    `json:"id"`
	Transfer *Transfer `json:"transfer,omitempty"`
}

func FromReceipt(r registry.Receipt) Receipt {
	out := Receipt{ID: r.ID}
	if t := r.Transfer; t != nil {
		out.Transfer = &Transfer{Amount: t.Amount, From: string(t.From), To: string(t.To)}
	}
	return out
}

type Config struct {
	NextMaterialID  uint64 `json:"nextMaterialID"`
	MaxMaterials    uint64 `json:"maxMaterials"`
	RegistrationFee uint64 `json:"registrationFee"`
	Authority       string `json:"authority"`
}

func FromConfig(c registry.Config) Config {
	return Config{
		NextMaterialID:  c.NextMaterialID,
		MaxMaterials:    c.MaxMaterials,
		RegistrationFee: c.RegistrationFee,
		Authority:       string(c.Authority),
	}
}

// HashInfo describes a payload's content address.
type HashInfo struct {
	Hash string `json:"hash"`
	CID  string `json:"cid"`
	Size int    `json:"size,omitempty"`
}

func FromHash(h registry.Hash, size int) HashInfo {
	return HashInfo{Hash: h.String(), CID: cidutil.String(h), Size: size}
}

// RegisterRequest is the JSON form of a registration.
type RegisterRequest struct {
	Hash        string `json:"hash"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Format      string `json:"format"`
}

// Registration converts r. A hash that is not hex yields INVALID_REQUEST;
// a hex hash of the wrong length is passed through for the registry to reject.
func (r RegisterRequest) Registration() (registry.Registration, error) {
	h, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(r.Hash), "0x"))
	if err != nil {
		return registry.Registration{}, NewError(ErrInvalidRequest, "hash must be hex")
	}
	return registry.Registration{
		Hash:        h,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Language:    r.Language,
		Format:      r.Format,
	}, nil
}

// Lookup is the result of an optional-record query.
type Lookup struct {
	Found    bool      `json:"found"`
	Material *Material `json:"material,omitempty"`
}

func FromLookup(m registry.Material, ok bool) Lookup {
	if !ok {
		return Lookup{}
	}
	mm := FromMaterial(m)
	return Lookup{Found: true, Material: &mm}
}

// Response is the envelope the CLI prints.
type Response struct {
	OK     bool        `json:"ok"`
	Result any         `json:"result,omitempty"`
	Error  *CodedError `json:"error,omitempty"`
}

func OK(result any) Response { return Response{OK: true, Result: result} }

func Failed(err error) Response { return Response{Error: FromError(err)} }
