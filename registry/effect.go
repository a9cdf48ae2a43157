package registry

// Op names a state-mutating registry operation.
type Op string

const (
	OpSetAuthority       Op = "set-authority"
	OpSetRegistrationFee Op = "set-registration-fee"
	OpSetMaxMaterials    Op = "set-max-materials"
	OpRegisterMaterial   Op = "register-material"
	OpUpdateMaterial     Op = "update-material"
	OpDeactivateMaterial Op = "deactivate-material"
)

// Effect describes a transition that passed validation and is about to be
// written. Only the fields relevant to Op are set.
type Effect struct {
	Op   Op   `json:"op"`
	Call Call `json:"call"`

	Authority       Principal `json:"authority,omitempty"`
	RegistrationFee uint64    `json:"registrationFee,omitempty"`
	MaxMaterials    uint64    `json:"maxMaterials,omitempty"`

	// Material is the record as it will be stored (register, update, deactivate).
	Material *Material `json:"material,omitempty"`
	Transfer *Transfer `json:"transfer,omitempty"`
}

// CommitGuard is consulted inside the atomic step of every mutating
// operation, after validation and before any write. A non-nil error aborts
// the operation with CodeCommitRejected and leaves state untouched.
//
// A guard must not call back into the Registry.
type CommitGuard func(Effect) error

// Option configures a Registry.
type Option func(*Registry)

// WithCommitGuard installs g as the registry's commit guard.
func WithCommitGuard(g CommitGuard) Option {
	return func(r *Registry) { r.guard = g }
}

// WithConfig overrides the initial capacity and registration fee.
// NextMaterialID and Authority in cfg are ignored.
func WithConfig(cfg Config) Option {
	return func(r *Registry) {
		r.maxMaterials = cfg.MaxMaterials
		r.registrationFee = cfg.RegistrationFee
	}
}
