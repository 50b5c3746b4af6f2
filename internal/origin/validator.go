// Package origin decides whether a declared web origin is trusted for
// cross-domain authentication.
package origin

// Validator checks request origins against a fixed allow-list.
// The allow-list is captured at construction time and never changes;
// updating it requires a process restart.
type Validator struct {
	allowed map[string]struct{}
}

// NewValidator creates a validator for the given origins. Matching is an
// exact string comparison: no wildcards, no scheme or port normalization.
func NewValidator(allowedOrigins []string) *Validator {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return &Validator{allowed: allowed}
}

// Validate reports whether origin is a literal member of the allow-list.
// An empty origin is never valid.
func (v *Validator) Validate(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := v.allowed[origin]
	return ok
}

// Origins returns the configured allow-list. The returned slice is a copy.
func (v *Validator) Origins() []string {
	out := make([]string, 0, len(v.allowed))
	for o := range v.allowed {
		out = append(out, o)
	}
	return out
}
