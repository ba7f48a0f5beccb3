package rules

import (
	"fmt"
	"strings"
)

// Action is the remedial response configured for a rule.
type Action string

const (
	ActionNone       Action = "none"
	ActionNotifyRole Action = "notify-role"
	ActionAddRole    Action = "add-role"
	ActionKick       Action = "kick"
	ActionBan        Action = "ban"
)

var actions = []Action{ActionNone, ActionNotifyRole, ActionAddRole, ActionKick, ActionBan}

// Actions lists every supported action.
func Actions() []Action {
	return append([]Action(nil), actions...)
}

// ParseAction accepts the canonical names as well as underscore spellings
// such as "add_role".
func ParseAction(value string) (Action, error) {
	normalized := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-"))
	if normalized == "message" {
		return ActionNotifyRole, nil
	}
	for _, action := range actions {
		if action == normalized {
			return action, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, value)
}

func (a Action) String() string {
	return string(a)
}

// Describe is the confirmation shown when an action is configured.
func (a Action) Describe() string {
	switch a {
	case ActionNone:
		return "An event will still fire, but nothing will be actioned"
	case ActionNotifyRole:
		return "On detection a message will be sent to the assigned role."
	case ActionAddRole:
		return "On detection I will add a role to the offender"
	case ActionKick:
		return "On detection I will kick the offender"
	case ActionBan:
		return "On detection I will ban the offender"
	default:
		return ""
	}
}
