package policy

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"hikeclub/internal/models"
)

// Request ownership values. "class" is sent for Kind checks, where any
// rule on the kind applies regardless of its ownership condition.
const (
	ownClass = "class"
	ownSelf  = "self"
	ownOther = "other"
)

const rbacModel = `
[request_definition]
r = role, obj, act, own

[policy_definition]
p = role, obj, act, own

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.role == p.role && keyMatch(r.obj, p.obj) && (p.act == "manage" || r.act == p.act) && (p.own == "any" || r.own == "class" || r.own == p.own)
`

const decisionCacheSize = 512

// Engine compiles the rule table into a casbin enforcer. Decisions are pure
// functions of (role, kind, action, ownership) and are memoized.
type Engine struct {
	enforcer *casbin.SyncedEnforcer
	cache    *lru.Cache[string, bool]
	logger   *zap.Logger
}

// NewEngine builds an Engine from Rules.
func NewEngine(logger *zap.Logger) (*Engine, error) {
	return NewEngineWithRules(Rules, logger)
}

// NewEngineWithRules builds an Engine from an arbitrary rule table.
func NewEngineWithRules(rules []Rule, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	policies := make([][]string, 0, len(rules))
	for _, r := range rules {
		if !r.Action.Valid() {
			return nil, fmt.Errorf("rule %v: invalid action", r)
		}
		policies = append(policies, r.strings())
	}
	if len(policies) > 0 {
		if _, err := enforcer.AddPolicies(policies); err != nil {
			return nil, fmt.Errorf("failed to add policies: %w", err)
		}
	}

	cache, err := lru.New[string, bool](decisionCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{enforcer: enforcer, cache: cache, logger: logger}, nil
}

// For returns the policy of an identity. A nil identity is a guest: it gets
// the user tier against a placeholder that owns nothing.
func (e *Engine) For(u *models.User) *Policy {
	if u == nil {
		u = &models.User{Role: models.RoleUser}
	}
	return &Policy{engine: e, identity: u}
}

func (e *Engine) decide(role models.Role, kind string, action Action, own string) bool {
	if !action.Valid() {
		return false
	}
	key := strings.Join([]string{role.String(), kind, string(action), own}, "|")
	if allowed, ok := e.cache.Get(key); ok {
		recordDecision(role.String(), string(action), kind, allowed)
		return allowed
	}

	allowed, err := e.enforcer.Enforce(role.String(), kind, string(action), own)
	if err != nil {
		e.logger.Error("authorization enforcement failed",
			zap.String("role", role.String()),
			zap.String("kind", kind),
			zap.String("action", string(action)),
			zap.Error(err))
		return false
	}
	e.cache.Add(key, allowed)
	recordDecision(role.String(), string(action), kind, allowed)
	return allowed
}
