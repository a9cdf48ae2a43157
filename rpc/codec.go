package rpc

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
)

func field(s *structpb.Struct, key string) (*structpb.Value, bool) {
	v, ok := s.GetFields()[key]
	return v, ok
}

func str(s *structpb.Struct, key string) string {
	v, _ := field(s, key)
	return v.GetStringValue()
}

func boolean(s *structpb.Struct, key string) bool {
	v, _ := field(s, key)
	return v.GetBoolValue()
}

// u64 reads a uint64 sent either as a decimal string or as an integral number.
func u64(s *structpb.Struct, key string) (uint64, error) {
	v, ok := field(s, key)
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(strings.TrimSpace(k.StringValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", key, err)
		}
		return n, nil
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f < 0 || f != math.Trunc(f) || f >= 1<<64 {
			return 0, fmt.Errorf("%q: %v is not a uint64", key, f)
		}
		return uint64(f), nil
	default:
		return 0, fmt.Errorf("%q: unsupported value", key)
	}
}

func u64String(n uint64) string { return strconv.FormatUint(n, 10) }

// rawHash decodes a registration hash from hex or a CID. Input that is
// neither comes back empty so that the registry reports it as invalid-hash
// in its usual check order.
func rawHash(s *structpb.Struct, key string) []byte {
	raw := trimHex(str(s, key))
	if b, err := hex.DecodeString(raw); err == nil {
		return b
	}
	if h, err := cidutil.Parse(raw); err == nil {
		return h.Bytes()
	}
	return []byte{}
}

// lookupHash decodes a lookup key. Hex of the wrong length is well formed
// but can never match, so ok is false; only input that is neither hex nor a
// CID is an error.
func lookupHash(s *structpb.Struct, key string) (h registry.Hash, ok bool, err error) {
	raw := trimHex(str(s, key))
	if b, err := hex.DecodeString(raw); err == nil {
		h, ok = registry.HashFromBytes(b)
		return h, ok, nil
	}
	if h, err = cidutil.Parse(raw); err != nil {
		return registry.Hash{}, false, fmt.Errorf("%q: %w", key, err)
	}
	return h, true, nil
}

// payload decodes the optional base64 "payload" field.
func payload(s *structpb.Struct) ([]byte, bool, error) {
	v, ok := field(s, "payload")
	if !ok {
		return nil, false, nil
	}
	b, err := base64.StdEncoding.DecodeString(v.GetStringValue())
	if err != nil {
		return nil, false, fmt.Errorf("%q: %w", "payload", err)
	}
	return b, true, nil
}

func trimHex(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "0x")
}

func materialFields(m registry.Material) map[string]any {
	return map[string]any{
		"id":          u64String(m.ID),
		"contentHash": m.ContentHash.String(),
		"title":       m.Title,
		"author":      string(m.Author),
		"description": m.Description,
		"category":    m.Category,
		"language":    m.Language,
		"format":      string(m.Format),
		"timestamp":   u64String(m.Timestamp),
		"active":      m.Active,
	}
}

func materialFromStruct(s *structpb.Struct) (registry.Material, error) {
	var (
		m   registry.Material
		err error
	)
	if m.ID, err = u64(s, "id"); err != nil {
		return m, err
	}
	if m.ContentHash, err = registry.ParseHash(str(s, "contentHash")); err != nil {
		return m, err
	}
	if m.Timestamp, err = u64(s, "timestamp"); err != nil {
		return m, err
	}
	m.Title = str(s, "title")
	m.Author = registry.Principal(str(s, "author"))
	m.Description = str(s, "description")
	m.Category = str(s, "category")
	m.Language = str(s, "language")
	m.Format = registry.Format(str(s, "format"))
	m.Active = boolean(s, "active")
	return m, nil
}

func transferFields(t registry.Transfer) map[string]any {
	return map[string]any{
		"amount": u64String(t.Amount),
		"from":   string(t.From),
		"to":     string(t.To),
	}
}

func transferFromStruct(s *structpb.Struct) (registry.Transfer, error) {
	amt, err := u64(s, "amount")
	if err != nil {
		return registry.Transfer{}, err
	}
	return registry.Transfer{
		Amount: amt,
		From:   registry.Principal(str(s, "from")),
		To:     registry.Principal(str(s, "to")),
	}, nil
}

func configFields(c registry.Config) map[string]any {
	return map[string]any{
		"nextMaterialId":  u64String(c.NextMaterialID),
		"maxMaterials":    u64String(c.MaxMaterials),
		"registrationFee": u64String(c.RegistrationFee),
		"authority":       string(c.Authority),
	}
}

func configFromStruct(s *structpb.Struct) (registry.Config, error) {
	var (
		c   registry.Config
		err error
	)
	if c.NextMaterialID, err = u64(s, "nextMaterialId"); err != nil {
		return c, err
	}
	if c.MaxMaterials, err = u64(s, "maxMaterials"); err != nil {
		return c, err
	}
	if c.RegistrationFee, err = u64(s, "registrationFee"); err != nil {
		return c, err
	}
	c.Authority = registry.Principal(str(s, "authority"))
	return c, nil
}
