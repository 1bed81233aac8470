package policy

import "hikeclub/internal/models"

// Ownership restricts a rule to records owned by the identity.
type Ownership string

const (
	OwnAny  Ownership = "any"
	OwnSelf Ownership = "self"
)

// Rule grants one action on one kind to one role.
type Rule struct {
	Role   models.Role
	Action Action
	Kind   Kind
	Own    Ownership
}

// Rules is evaluated per role; the rule set of a role is exhaustive and
// anything it does not grant is denied. Roles are listed most privileged first.
var Rules = []Rule{
	{models.RoleAdmin, ActionManage, KindAll, OwnAny},

	{models.RoleModerator, ActionRead, KindUser, OwnAny},
	{models.RoleModerator, ActionUpdate, KindUser, OwnAny},
	{models.RoleModerator, ActionManage, KindUser, OwnSelf},
	{models.RoleModerator, ActionManage, KindHike, OwnAny},
	{models.RoleModerator, ActionManage, KindHikeHistory, OwnAny},
	{models.RoleModerator, ActionManage, KindHikePath, OwnAny},

	{models.RoleUser, ActionRead, KindUser, OwnSelf},
	{models.RoleUser, ActionUpdate, KindUser, OwnSelf},
	{models.RoleUser, ActionDestroy, KindUser, OwnSelf},
	// TODO: restrict hike writes to moderators once guides no longer edit hike data.
	{models.RoleUser, ActionManage, KindHike, OwnAny},
	{models.RoleUser, ActionManage, KindHikeHistory, OwnAny},
	{models.RoleUser, ActionManage, KindHikePath, OwnAny},
}

// RulesFor returns the rule set of a role.
func RulesFor(role models.Role) []Rule {
	var out []Rule
	for _, r := range Rules {
		if r.Role == role {
			out = append(out, r)
		}
	}
	return out
}

func (r Rule) strings() []string {
	return []string{r.Role.String(), string(r.Kind), string(r.Action), string(r.Own)}
}
