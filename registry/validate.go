package registry

import "unicode/utf8"

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
	MaxCategoryLen    = 50
	MaxLanguageLen    = 20
)

func validText(s string, max int, allowEmpty bool) bool {
	if s == "" {
		return allowEmpty
	}
	return utf8.RuneCountInString(s) <= max
}

// validateRegistration runs the structural checks of RegisterMaterial in
// order. It does not consult registry state.
func validateRegistration(reg Registration) (Hash, error) {
	h, ok := HashFromBytes(reg.Hash)
	if !ok {
		return Hash{}, newError(CodeInvalidHash, "hash must be %d bytes, got %d", HashSize, len(reg.Hash))
	}
	if !validText(reg.Title, MaxTitleLen, false) {
		return Hash{}, newError(CodeInvalidTitle, "title must be 1..%d characters", MaxTitleLen)
	}
	if !validText(reg.Description, MaxDescriptionLen, true) {
		return Hash{}, newError(CodeInvalidDescription, "description must be at most %d characters", MaxDescriptionLen)
	}
	if !validText(reg.Category, MaxCategoryLen, false) {
		return Hash{}, newError(CodeInvalidCategory, "category must be 1..%d characters", MaxCategoryLen)
	}
	if !validText(reg.Language, MaxLanguageLen, false) {
		return Hash{}, newError(CodeInvalidLanguage, "language must be 1..%d characters", MaxLanguageLen)
	}
	if !Format(reg.Format).Valid() {
		return Hash{}, newError(CodeInvalidFormat, "unknown format %q", reg.Format)
	}
	return h, nil
}

func validateEdit(title, description string) error {
	if !validText(title, MaxTitleLen, false) {
		return newError(CodeInvalidTitle, "title must be 1..%d characters", MaxTitleLen)
	}
	if !validText(description, MaxDescriptionLen, true) {
		return newError(CodeInvalidDescription, "description must be at most %d characters", MaxDescriptionLen)
	}
	return nil
}
