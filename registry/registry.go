package registry

import "sync"

const (
	DefaultMaxMaterials    uint64 = 10000
	DefaultRegistrationFee uint64 = 500
)

// Registry is the single owner of material registry state.
//
// It is safe for concurrent use; every operation is serialized against
// every other mutating operation. Materials are returned by value.
type Registry struct {
	mu sync.RWMutex

	nextID          uint64
	maxMaterials    uint64
	registrationFee uint64
	authority       Principal

	// materials is indexed by id; ids are dense so a slice is the primary store.
	materials []Material
	byHash    map[Hash]uint64

	guard CommitGuard
}

// New returns an empty registry with DefaultMaxMaterials and DefaultRegistrationFee.
func New(opts ...Option) *Registry {
	r := &Registry{
		maxMaterials:    DefaultMaxMaterials,
		registrationFee: DefaultRegistrationFee,
		byHash:          make(map[Hash]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) commit(e Effect) error {
	if r.guard == nil {
		return nil
	}
	if err := r.guard(e); err != nil {
		return wrapError(CodeCommitRejected, string(e.Op)+" rejected before commit", err)
	}
	return nil
}

// SetAuthority configures the authority principal. It succeeds at most once.
func (r *Registry) SetAuthority(call Call, candidate Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if candidate == "" || candidate == BurnPrincipal {
		return newError(CodeInvalidAuthority, "principal %q cannot be the authority", candidate)
	}
	if r.authority != "" {
		return newError(CodeAuthorityAlreadySet, "authority is already set")
	}
	if err := r.commit(Effect{Op: OpSetAuthority, Call: call, Authority: candidate}); err != nil {
		return err
	}
	r.authority = candidate
	return nil
}

// checkAdmin enforces that the authority is set and that the caller is it.
func (r *Registry) checkAdmin(call Call) error {
	if r.authority == "" {
		return newError(CodeAuthorityNotVerified, "authority is not set")
	}
	if call.Caller != r.authority {
		return newError(CodeNotAuthorized, "caller %q is not the authority", call.Caller)
	}
	return nil
}

// SetRegistrationFee replaces the fee charged per registration.
func (r *Registry) SetRegistrationFee(call Call, fee uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkAdmin(call); err != nil {
		return err
	}
	if err := r.commit(Effect{Op: OpSetRegistrationFee, Call: call, RegistrationFee: fee}); err != nil {
		return err
	}
	r.registrationFee = fee
	return nil
}

// SetMaxMaterials replaces the capacity ceiling. Existing materials are kept
// even when limit is below the current count; registration is then refused.
func (r *Registry) SetMaxMaterials(call Call, limit uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkAdmin(call); err != nil {
		return err
	}
	if err := r.commit(Effect{Op: OpSetMaxMaterials, Call: call, MaxMaterials: limit}); err != nil {
		return err
	}
	r.maxMaterials = limit
	return nil
}

// RegisterMaterial validates reg and records a new material authored by
// call.Caller. Checks run in a fixed order and the first failure is
// returned; structural checks never touch the indexes.
func (r *Registry) RegisterMaterial(call Call, reg Registration) (Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nextID >= r.maxMaterials {
		return Receipt{}, newError(CodeMaxMaterialsExceeded, "registry is full (%d materials)", r.maxMaterials)
	}
	h, err := validateRegistration(reg)
	if err != nil {
		return Receipt{}, err
	}
	if id, exists := r.byHash[h]; exists {
		return Receipt{}, newError(CodeMaterialAlreadyExists, "hash %s already registered as material %d", h, id)
	}
	if r.authority == "" {
		return Receipt{}, newError(CodeAuthorityNotVerified, "authority is not set")
	}

	var transfer *Transfer
	if r.registrationFee > 0 {
		transfer = &Transfer{Amount: r.registrationFee, From: call.Caller, To: r.authority}
	}
	m := Material{
		ID:          r.nextID,
		ContentHash: h,
		Title:       reg.Title,
		Author:      call.Caller,
		Description: reg.Description,
		Category:    reg.Category,
		Language:    reg.Language,
		Format:      Format(reg.Format),
		Timestamp:   call.Height,
		Active:      true,
	}
	rec := m
	if err := r.commit(Effect{Op: OpRegisterMaterial, Call: call, Material: &rec, Transfer: transfer}); err != nil {
		return Receipt{}, err
	}

	r.materials = append(r.materials, m)
	r.byHash[h] = m.ID
	r.nextID++
	return Receipt{ID: m.ID, Transfer: transfer}, nil
}

// lookup returns the stored material for id. Callers must hold r.mu.
func (r *Registry) lookup(id uint64) (Material, bool) {
	if id >= uint64(len(r.materials)) {
		return Material{}, false
	}
	return r.materials[id], true
}

// authored returns the material for id if call.Caller is its author.
func (r *Registry) authored(call Call, id uint64) (Material, error) {
	m, ok := r.lookup(id)
	if !ok {
		return Material{}, newError(CodeMaterialNotFound, "material %d not found", id)
	}
	if m.Author != call.Caller {
		return Material{}, newError(CodeNotAuthorized, "caller %q is not the author of material %d", call.Caller, id)
	}
	return m, nil
}

// GetMaterial returns the material with the given id.
func (r *Registry) GetMaterial(id uint64) (Material, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id)
}

// UpdateMaterial replaces the title and description of a material and
// stamps it with call.Height. Only the author may update.
func (r *Registry) UpdateMaterial(call Call, id uint64, title, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.authored(call, id)
	if err != nil {
		return err
	}
	if err := validateEdit(title, description); err != nil {
		return err
	}
	m.Title = title
	m.Description = description
	m.Timestamp = call.Height

	rec := m
	if err := r.commit(Effect{Op: OpUpdateMaterial, Call: call, Material: &rec}); err != nil {
		return err
	}
	r.materials[id] = m
	return nil
}

// DeactivateMaterial marks a material inactive. There is no reactivation.
// Deactivating an inactive material succeeds but still requires authorship.
func (r *Registry) DeactivateMaterial(call Call, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.authored(call, id)
	if err != nil {
		return err
	}
	m.Active = false

	rec := m
	if err := r.commit(Effect{Op: OpDeactivateMaterial, Call: call, Material: &rec}); err != nil {
		return err
	}
	r.materials[id] = m
	return nil
}

// VerifyMaterial returns the material registered under h, or a
// CodeMaterialNotFound error.
func (r *Registry) VerifyMaterial(h Hash) (Material, error) {
	m, ok := r.GetMaterialByHash(h)
	if !ok {
		return Material{}, newError(CodeMaterialNotFound, "no material registered for hash %s", h)
	}
	return m, nil
}

// GetMaterialByHash returns the material registered under h.
func (r *Registry) GetMaterialByHash(h Hash) (Material, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byHash[h]
	if !ok {
		return Material{}, false
	}
	return r.lookup(id)
}

// MaterialCount returns the number of materials ever registered, including
// inactive ones.
func (r *Registry) MaterialCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextID
}

// Config returns a snapshot of the registry configuration.
func (r *Registry) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Config{
		NextMaterialID:  r.nextID,
		MaxMaterials:    r.maxMaterials,
		RegistrationFee: r.registrationFee,
		Authority:       r.authority,
	}
}
