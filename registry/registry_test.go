package registry

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	registrant Principal = "ST1TEST"
	authority  Principal = "ST2TEST"
	stranger   Principal = "ST3FAKE"
)

func hashOf(b byte) []byte { return bytes.Repeat([]byte{b}, HashSize) }

func validRegistration(b byte) Registration {
	return Registration{
		Hash:        hashOf(b),
		Title:       "Cultural Lesson",
		Description: "Traditional weaving techniques",
		Category:    "Education",
		Language:    "EN",
		Format:      "PDF",
	}
}

func call(p Principal, height uint64) Call { return Call{Caller: p, Height: height} }

func newAuthorized(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := New(opts...)
	require.NoError(t, r.SetAuthority(call(registrant, 0), authority))
	return r
}

func TestRegisterMaterial_Success(t *testing.T) {
	r := newAuthorized(t)

	rcpt, err := r.RegisterMaterial(call(registrant, 7), validRegistration(1))
	require.NoError(t, err)
	require.Equal(t, uint64(0), rcpt.ID)
	require.Equal(t, &Transfer{Amount: 500, From: registrant, To: authority}, rcpt.Transfer)

	m, ok := r.GetMaterial(0)
	require.True(t, ok)
	require.Equal(t, "Cultural Lesson", m.Title)
	require.Equal(t, "Traditional weaving techniques", m.Description)
	require.Equal(t, "Education", m.Category)
	require.Equal(t, "EN", m.Language)
	require.Equal(t, FormatPDF, m.Format)
	require.Equal(t, registrant, m.Author)
	require.Equal(t, uint64(7), m.Timestamp)
	require.True(t, m.Active)
	require.Equal(t, uint64(1), r.MaterialCount())
}

func TestRegisterMaterial_AuthorityGate(t *testing.T) {
	r := New()

	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.True(t, IsCode(err, CodeAuthorityNotVerified), "got %v", err)
	require.Equal(t, uint64(0), r.MaterialCount())

	require.NoError(t, r.SetAuthority(call(registrant, 1), "A"))
	rcpt, err := r.RegisterMaterial(call(registrant, 2), validRegistration(1))
	require.NoError(t, err)
	require.Equal(t, uint64(0), rcpt.ID)
	require.NotNil(t, rcpt.Transfer)
	require.Equal(t, Transfer{Amount: DefaultRegistrationFee, From: registrant, To: "A"}, *rcpt.Transfer)
}

func TestRegisterMaterial_DuplicateHash(t *testing.T) {
	r := newAuthorized(t)
	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)

	second := validRegistration(1)
	second.Title = "Lesson 2"
	second.Format = "VIDEO"
	_, err = r.RegisterMaterial(call(stranger, 2), second)
	require.True(t, IsCode(err, CodeMaterialAlreadyExists), "got %v", err)
	require.True(t, IsKind(err, KindConflict))

	m, ok := r.GetMaterial(0)
	require.True(t, ok)
	require.Equal(t, "Cultural Lesson", m.Title)
	require.Equal(t, registrant, m.Author)
	require.Equal(t, uint64(1), r.MaterialCount())
}

func TestRegisterMaterial_ValidationCodes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
		want   Code
	}{
		{"short hash", func(g *Registration) { g.Hash = g.Hash[:31] }, CodeInvalidHash},
		{"long hash", func(g *Registration) { g.Hash = append(g.Hash, 0) }, CodeInvalidHash},
		{"nil hash", func(g *Registration) { g.Hash = nil }, CodeInvalidHash},
		{"empty title", func(g *Registration) { g.Title = "" }, CodeInvalidTitle},
		{"long title", func(g *Registration) { g.Title = strings.Repeat("t", 101) }, CodeInvalidTitle},
		{"long description", func(g *Registration) { g.Description = strings.Repeat("d", 501) }, CodeInvalidDescription},
		{"empty category", func(g *Registration) { g.Category = "" }, CodeInvalidCategory},
		{"long category", func(g *Registration) { g.Category = strings.Repeat("c", 51) }, CodeInvalidCategory},
		{"empty language", func(g *Registration) { g.Language = "" }, CodeInvalidLanguage},
		{"long language", func(g *Registration) { g.Language = strings.Repeat("l", 21) }, CodeInvalidLanguage},
		{"unknown format", func(g *Registration) { g.Format = "EPUB" }, CodeInvalidFormat},
		{"lowercase format", func(g *Registration) { g.Format = "pdf" }, CodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthorized(t)
			reg := validRegistration(1)
			tt.mutate(&reg)
			_, err := r.RegisterMaterial(call(registrant, 1), reg)
			require.Equal(t, tt.want, CodeOf(err), "got %v", err)
			require.Equal(t, uint64(0), r.MaterialCount())
		})
	}
}

func TestRegisterMaterial_BoundaryLengthsAccepted(t *testing.T) {
	r := newAuthorized(t)
	reg := validRegistration(1)
	reg.Title = strings.Repeat("é", MaxTitleLen)
	reg.Description = ""
	reg.Category = strings.Repeat("c", MaxCategoryLen)
	reg.Language = strings.Repeat("l", MaxLanguageLen)
	reg.Format = "AUDIO"

	_, err := r.RegisterMaterial(call(registrant, 1), reg)
	require.NoError(t, err)
}

func TestRegisterMaterial_CheckOrder(t *testing.T) {
	// Capacity wins over everything.
	r := New(WithConfig(Config{MaxMaterials: 0}))
	_, err := r.RegisterMaterial(call(registrant, 1), Registration{})
	require.Equal(t, CodeMaxMaterialsExceeded, CodeOf(err))

	// Invalid hash wins over a bad title and a missing authority.
	r = New()
	_, err = r.RegisterMaterial(call(registrant, 1), Registration{Hash: []byte{1}})
	require.Equal(t, CodeInvalidHash, CodeOf(err))

	// Structural checks run before the duplicate probe.
	r = newAuthorized(t)
	_, err = r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)
	dup := validRegistration(1)
	dup.Format = "EPUB"
	_, err = r.RegisterMaterial(call(registrant, 2), dup)
	require.Equal(t, CodeInvalidFormat, CodeOf(err))

	// Duplicate is reported before the authority gate.
	r = New()
	reg := validRegistration(2)
	require.NoError(t, r.SetAuthority(call(registrant, 0), authority))
	_, err = r.RegisterMaterial(call(registrant, 1), reg)
	require.NoError(t, err)
	_, err = r.RegisterMaterial(call(registrant, 2), reg)
	require.Equal(t, CodeMaterialAlreadyExists, CodeOf(err))
}

func TestRegisterMaterial_InvalidTitleConsumesNoID(t *testing.T) {
	r := newAuthorized(t)
	reg := validRegistration(1)
	reg.Title = strings.Repeat("x", 101)
	_, err := r.RegisterMaterial(call(registrant, 1), reg)
	require.Equal(t, CodeInvalidTitle, CodeOf(err))

	rcpt, err := r.RegisterMaterial(call(registrant, 2), validRegistration(1))
	require.NoError(t, err)
	require.Equal(t, uint64(0), rcpt.ID)
}

func TestRegisterMaterial_Capacity(t *testing.T) {
	r := newAuthorized(t, WithConfig(Config{MaxMaterials: 2, RegistrationFee: 10}))
	for i := byte(0); i < 2; i++ {
		_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(i))
		require.NoError(t, err)
	}
	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(9))
	require.True(t, IsKind(err, KindCapacity))
}

func TestRegisterMaterial_ZeroFeeEmitsNoTransfer(t *testing.T) {
	r := newAuthorized(t)
	require.NoError(t, r.SetRegistrationFee(call(authority, 1), 0))

	rcpt, err := r.RegisterMaterial(call(registrant, 2), validRegistration(1))
	require.NoError(t, err)
	require.Nil(t, rcpt.Transfer)
}

func TestSetAuthority(t *testing.T) {
	r := New()
	require.Equal(t, CodeInvalidAuthority, CodeOf(r.SetAuthority(call(registrant, 0), BurnPrincipal)))
	require.Equal(t, CodeInvalidAuthority, CodeOf(r.SetAuthority(call(registrant, 0), "")))
	require.False(t, r.Config().AuthoritySet())

	require.NoError(t, r.SetAuthority(call(registrant, 0), authority))
	err := r.SetAuthority(call(authority, 0), stranger)
	require.Equal(t, CodeAuthorityAlreadySet, CodeOf(err))
	require.Equal(t, authority, r.Config().Authority)
}

func TestSetRegistrationFee(t *testing.T) {
	r := New()
	err := r.SetRegistrationFee(call(authority, 0), 1000)
	require.Equal(t, CodeAuthorityNotVerified, CodeOf(err))

	require.NoError(t, r.SetAuthority(call(registrant, 0), authority))
	err = r.SetRegistrationFee(call(stranger, 0), 1000)
	require.Equal(t, CodeNotAuthorized, CodeOf(err))
	require.Equal(t, DefaultRegistrationFee, r.Config().RegistrationFee)

	require.NoError(t, r.SetRegistrationFee(call(authority, 0), 1000))
	rcpt, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)
	require.Equal(t, uint64(1000), rcpt.Transfer.Amount)
}

func TestSetMaxMaterials(t *testing.T) {
	r := newAuthorized(t)
	require.Equal(t, CodeNotAuthorized, CodeOf(r.SetMaxMaterials(call(registrant, 0), 1)))

	require.NoError(t, r.SetMaxMaterials(call(authority, 0), 1))
	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)
	_, err = r.RegisterMaterial(call(registrant, 1), validRegistration(2))
	require.Equal(t, CodeMaxMaterialsExceeded, CodeOf(err))

	// Lowering below the count keeps existing records.
	require.NoError(t, r.SetMaxMaterials(call(authority, 0), 0))
	_, ok := r.GetMaterial(0)
	require.True(t, ok)
}

func TestUpdateMaterial(t *testing.T) {
	r := newAuthorized(t)
	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)

	require.NoError(t, r.UpdateMaterial(call(registrant, 5), 0, "New Title", "New Desc"))
	m, ok := r.GetMaterial(0)
	require.True(t, ok)
	require.Equal(t, "New Title", m.Title)
	require.Equal(t, "New Desc", m.Description)
	require.Equal(t, uint64(5), m.Timestamp)
	require.Equal(t, registrant, m.Author)
	require.Equal(t, "Education", m.Category)
	require.True(t, m.Active)
}

func TestUpdateMaterial_Rejections(t *testing.T) {
	r := newAuthorized(t)
	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)
	before, _ := r.GetMaterial(0)

	require.Equal(t, CodeNotAuthorized, CodeOf(r.UpdateMaterial(call(stranger, 2), 0, "New Title", "New Desc")))
	require.Equal(t, CodeMaterialNotFound, CodeOf(r.UpdateMaterial(call(registrant, 2), 42, "New Title", "")))
	require.Equal(t, CodeInvalidTitle, CodeOf(r.UpdateMaterial(call(registrant, 2), 0, "", "")))
	require.Equal(t, CodeInvalidTitle, CodeOf(r.UpdateMaterial(call(registrant, 2), 0, strings.Repeat("t", 101), "")))
	require.Equal(t, CodeInvalidDescription, CodeOf(r.UpdateMaterial(call(registrant, 2), 0, "ok", strings.Repeat("d", 501))))

	after, _ := r.GetMaterial(0)
	require.Equal(t, before, after)
}

func TestUpdateMaterial_PreservesInactiveStatus(t *testing.T) {
	r := newAuthorized(t)
	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)
	require.NoError(t, r.DeactivateMaterial(call(registrant, 2), 0))
	require.NoError(t, r.UpdateMaterial(call(registrant, 3), 0, "Renamed", ""))

	m, _ := r.GetMaterial(0)
	require.False(t, m.Active)
	require.Equal(t, uint64(3), m.Timestamp)
}

func TestDeactivateMaterial(t *testing.T) {
	r := newAuthorized(t)
	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)

	require.Equal(t, CodeNotAuthorized, CodeOf(r.DeactivateMaterial(call(stranger, 2), 0)))
	require.Equal(t, CodeMaterialNotFound, CodeOf(r.DeactivateMaterial(call(registrant, 2), 1)))

	require.NoError(t, r.DeactivateMaterial(call(registrant, 9), 0))
	m, _ := r.GetMaterial(0)
	require.False(t, m.Active)
	require.Equal(t, uint64(1), m.Timestamp, "deactivation must not touch the timestamp")

	// Idempotent in effect, but authorship is still checked.
	require.NoError(t, r.DeactivateMaterial(call(registrant, 10), 0))
	require.Equal(t, CodeNotAuthorized, CodeOf(r.DeactivateMaterial(call(stranger, 10), 0)))
	m, _ = r.GetMaterial(0)
	require.False(t, m.Active)
	require.Equal(t, uint64(1), r.MaterialCount())
}

func TestVerifyAndLookupByHash(t *testing.T) {
	r := newAuthorized(t)
	h, _ := HashFromBytes(hashOf(1))

	_, err := r.VerifyMaterial(h)
	require.Equal(t, CodeMaterialNotFound, CodeOf(err))
	_, ok := r.GetMaterialByHash(h)
	require.False(t, ok)

	_, err = r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)

	stored, _ := r.GetMaterial(0)
	got, err := r.VerifyMaterial(h)
	require.NoError(t, err)
	require.Equal(t, stored, got)
	byHash, ok := r.GetMaterialByHash(h)
	require.True(t, ok)
	require.Equal(t, stored, byHash)
}

func TestGetMaterial_Missing(t *testing.T) {
	r := New()
	_, ok := r.GetMaterial(0)
	require.False(t, ok)
}

func TestCommitGuard(t *testing.T) {
	var seen []Effect
	reject := false
	r := New(WithCommitGuard(func(e Effect) error {
		if reject {
			return errors.New("settlement unavailable")
		}
		seen = append(seen, e)
		return nil
	}))

	require.NoError(t, r.SetAuthority(call(registrant, 0), authority))
	_, err := r.RegisterMaterial(call(registrant, 3), validRegistration(1))
	require.NoError(t, err)

	require.Len(t, seen, 2)
	require.Equal(t, OpSetAuthority, seen[0].Op)
	require.Equal(t, authority, seen[0].Authority)
	require.Equal(t, OpRegisterMaterial, seen[1].Op)
	require.Equal(t, uint64(0), seen[1].Material.ID)
	require.Equal(t, uint64(3), seen[1].Material.Timestamp)
	require.Equal(t, &Transfer{Amount: 500, From: registrant, To: authority}, seen[1].Transfer)

	reject = true
	_, err = r.RegisterMaterial(call(registrant, 4), validRegistration(2))
	require.Equal(t, CodeCommitRejected, CodeOf(err))
	require.ErrorContains(t, err, "settlement unavailable")
	require.Equal(t, uint64(1), r.MaterialCount())
	h, _ := HashFromBytes(hashOf(2))
	_, ok := r.GetMaterialByHash(h)
	require.False(t, ok)

	require.Equal(t, CodeCommitRejected, CodeOf(r.DeactivateMaterial(call(registrant, 5), 0)))
	m, _ := r.GetMaterial(0)
	require.True(t, m.Active)
}

func TestReturnedMaterialIsACopy(t *testing.T) {
	r := newAuthorized(t)
	_, err := r.RegisterMaterial(call(registrant, 1), validRegistration(1))
	require.NoError(t, err)

	m, _ := r.GetMaterial(0)
	m.Title = "mutated"
	m.ContentHash[0] = 0xff

	again, _ := r.GetMaterial(0)
	require.Equal(t, "Cultural Lesson", again.Title)
	require.Equal(t, byte(1), again.ContentHash[0])
}
