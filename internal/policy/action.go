package policy

import "fmt"

// Action is the closed set of verbs a route may declare.
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
	// ActionManage implies every other action when granted by a rule.
	ActionManage Action = "manage"
)

// Actions lists every action.
var Actions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDestroy, ActionManage}

func (a Action) String() string { return string(a) }

// Valid reports whether a is one of the enumerated actions.
func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionCreate, ActionUpdate, ActionDestroy, ActionManage:
		return true
	}
	return false
}

// RequiresRecord reports whether the action targets an existing record.
func (a Action) RequiresRecord() bool {
	return a != ActionCreate
}

// ParseAction converts a verb name into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}
