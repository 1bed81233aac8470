package policy

import (
	"gorm.io/gorm"

	"hikeclub/internal/models"
)

// Policy is the decision function of one identity.
type Policy struct {
	engine   *Engine
	identity *models.User
}

// Identity returns the user the policy was built for (a placeholder for guests).
func (p *Policy) Identity() *models.User { return p.identity }

// Role returns the role the policy evaluates with.
func (p *Policy) Role() models.Role { return p.identity.Role }

// Guest reports whether the policy was built without a persisted identity.
func (p *Policy) Guest() bool { return !p.identity.Persisted() }

// Allows reports whether action may be performed on r.
func (p *Policy) Allows(action Action, r Resource) bool {
	if r == nil {
		return false
	}
	return p.engine.decide(p.identity.Role, r.ResourceKind(), action, p.ownership(r))
}

// Authorize is Allows returning a *DeniedError on deny.
func (p *Policy) Authorize(action Action, r Resource) error {
	if p.Allows(action, r) {
		return nil
	}
	kind := ""
	if r != nil {
		kind = r.ResourceKind()
	}
	return &DeniedError{Role: p.identity.Role.String(), Action: action, Kind: kind}
}

func (p *Policy) ownership(r Resource) string {
	if _, ok := r.(Kind); ok {
		return ownClass
	}
	owned, ok := r.(Owned)
	if ok && p.identity.Persisted() && owned.OwnerID() == p.identity.ID {
		return ownSelf
	}
	return ownOther
}

// Accessible returns the scope of records of kind the identity may act on.
func (p *Policy) Accessible(action Action, kind Kind) Scope {
	if p.engine.decide(p.identity.Role, string(kind), action, ownOther) {
		return Scope{mode: scopeAll}
	}
	if p.identity.Persisted() && p.engine.decide(p.identity.Role, string(kind), action, ownSelf) {
		return Scope{mode: scopeOwner, ownerID: p.identity.ID}
	}
	return Scope{mode: scopeNone}
}

type scopeMode int

const (
	scopeNone scopeMode = iota
	scopeOwner
	scopeAll
)

// Scope is an ownership filter for list queries.
type Scope struct {
	mode    scopeMode
	ownerID uint
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool { return s.mode == scopeAll }

// Empty reports whether the scope matches nothing.
func (s Scope) Empty() bool { return s.mode == scopeNone }

// OwnerID returns the owner the scope is restricted to, if any.
func (s Scope) OwnerID() (uint, bool) {
	return s.ownerID, s.mode == scopeOwner
}

// Apply restricts a query; column names the owner column ("id" for users).
func (s Scope) Apply(db *gorm.DB, column string) *gorm.DB {
	switch s.mode {
	case scopeAll:
		return db
	case scopeOwner:
		return db.Where(column+" = ?", s.ownerID)
	default:
		return db.Where("1 = 0")
	}
}
