// Package input maps user input from the viewer page and the tray onto
// viewer actions.
package input

// Action is a discrete user action.
type Action int

const (
	ActionNone Action = iota
	ActionNextEnvironment
	ActionPreviousEnvironment
	ActionNextModel
	ActionPreviousModel
	ActionToggleHead
	ActionFullscreen
)

func (a Action) String() string {
	switch a {
	case ActionNextEnvironment:
		return "next_environment"
	case ActionPreviousEnvironment:
		return "previous_environment"
	case ActionNextModel:
		return "next_model"
	case ActionPreviousModel:
		return "previous_model"
	case ActionToggleHead:
		return "toggle_head"
	case ActionFullscreen:
		return "fullscreen"
	default:
		return "none"
	}
}

// Event is an action together with where it came from.
type Event struct {
	Action Action
	// Source identifies the sender, e.g. a WebSocket client id or "tray".
	Source string
}

// Bindings maps browser KeyboardEvent.key values to actions.
type Bindings map[string]Action

// DefaultBindings returns the arrow key bindings.
func DefaultBindings() Bindings {
	return Bindings{
		"ArrowRight": ActionNextEnvironment,
		"ArrowLeft":  ActionPreviousEnvironment,
		"ArrowUp":    ActionNextModel,
		"ArrowDown":  ActionPreviousModel,
	}
}

// Lookup returns the action bound to key, or ActionNone.
func (b Bindings) Lookup(key string) Action {
	if a, ok := b[key]; ok {
		return a
	}
	return ActionNone
}

// Cycler is the part of the controller that cycling actions drive.
type Cycler interface {
	NextEnvironment()
	PreviousEnvironment()
	NextModel()
	PreviousModel()
}

// Apply runs a cycling action on c. It reports false for actions that are not
// cycling actions, which the caller handles itself.
func Apply(c Cycler, a Action) bool {
	switch a {
	case ActionNextEnvironment:
		c.NextEnvironment()
	case ActionPreviousEnvironment:
		c.PreviousEnvironment()
	case ActionNextModel:
		c.NextModel()
	case ActionPreviousModel:
		c.PreviousModel()
	default:
		return false
	}
	return true
}
