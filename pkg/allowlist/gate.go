package allowlist

// Gate answers whether an operation may be exposed and called. The mutate flag is captured
// at construction and never changes.
type Gate struct {
	allowlist   *Allowlist
	allowMutate bool
}

func NewGate(allowlist *Allowlist, allowMutate bool) *Gate {
	return &Gate{allowlist: allowlist, allowMutate: allowMutate}
}

// IsPermitted reports whether id may run. Allowlisted operations always may; any other
// operation is mutating and only runs when allowMutate is set.
func IsPermitted(allowlist *Allowlist, id string, allowMutate bool) bool {
	if allowlist != nil && allowlist.Contains(id) {
		return true
	}
	return allowMutate
}

func (g *Gate) IsPermitted(id string) bool {
	return IsPermitted(g.allowlist, id, g.allowMutate)
}

// IsMutating reports whether id is absent from the allowlist.
func (g *Gate) IsMutating(id string) bool {
	return g.allowlist == nil || !g.allowlist.Contains(id)
}

func (g *Gate) AllowMutate() bool {
	return g.allowMutate
}

func (g *Gate) Allowlist() *Allowlist {
	return g.allowlist
}

// Check returns a *PermissionError when id is not permitted.
func (g *Gate) Check(id string) error {
	if g.IsPermitted(id) {
		return nil
	}
	return &PermissionError{Operation: id}
}

// Permissions maps every id to its permission.
func (g *Gate) Permissions(ids []string) map[string]bool {
	permissions := make(map[string]bool, len(ids))
	for _, id := range ids {
		permissions[id] = g.IsPermitted(id)
	}
	return permissions
}
