package journal

import (
	"context"
	"fmt"

	"xdao.co/matreg/registry"
)

// Replay re-applies entries to reg through its public operations. reg is
// expected to be freshly constructed with the same initial configuration the
// entries were recorded under. Any rejection aborts the replay.
func Replay(ctx context.Context, entries []Entry, reg *registry.Registry) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		eff, err := e.Effect()
		if err != nil {
			return err
		}
		if err := apply(reg, eff); err != nil {
			return fmt.Errorf("journal: replay entry %d (%s): %w", e.Seq, e.Op, err)
		}
	}
	return nil
}

func apply(reg *registry.Registry, eff registry.Effect) error {
	switch eff.Op {
	case registry.OpSetAuthority:
		return reg.SetAuthority(eff.Call, eff.Authority)
	case registry.OpSetRegistrationFee:
		return reg.SetRegistrationFee(eff.Call, eff.RegistrationFee)
	case registry.OpSetMaxMaterials:
		return reg.SetMaxMaterials(eff.Call, eff.MaxMaterials)
	}

	m := eff.Material
	if m == nil {
		return fmt.Errorf("%s entry carries no material", eff.Op)
	}
	switch eff.Op {
	case registry.OpRegisterMaterial:
		rcpt, err := reg.RegisterMaterial(eff.Call, registry.Registration{
			Hash:        m.ContentHash.Bytes(),
			Title:       m.Title,
			Description: m.Description,
			Category:    m.Category,
			Language:    m.Language,
			Format:      string(m.Format),
		})
		if err != nil {
			return err
		}
		if rcpt.ID != m.ID {
			return fmt.Errorf("material id diverged: journal %d, registry %d", m.ID, rcpt.ID)
		}
		return nil
	case registry.OpUpdateMaterial:
		return reg.UpdateMaterial(eff.Call, m.ID, m.Title, m.Description)
	case registry.OpDeactivateMaterial:
		return reg.DeactivateMaterial(eff.Call, m.ID)
	default:
		return fmt.Errorf("unknown op %q", eff.Op)
	}
}
