// Package presence implements the presence and selection controller: it follows
// whether a face is in view frame by frame, swaps the helmet and environment
// after a face has been gone for a while, and handles manual cycling.
package presence

import (
	"errors"
	"fmt"

	"github.com/ayusman/visor/internal/catalog"
	"github.com/ayusman/visor/internal/detector"
)

// AbsenceThresholdMs is how long a face must be gone, measured from the last
// frame it was seen in, before the automatic switch fires.
const AbsenceThresholdMs = 200

// ErrNotInCatalog is returned when an initial selection is not a catalog member.
var ErrNotInCatalog = errors.New("not in catalog")

// Phase is the presence state.
type Phase int

const (
	// NeverSeen is the initial phase; no face has been detected yet.
	NeverSeen Phase = iota
	// Present means the latest frame contained a face.
	Present
	// AbsentPending means the face is gone but the switch has not fired yet.
	AbsentPending
	// AbsentHandled means the switch already fired for this absence.
	AbsentHandled
)

func (p Phase) String() string {
	switch p {
	case NeverSeen:
		return "never_seen"
	case Present:
		return "present"
	case AbsentPending:
		return "absent_pending"
	case AbsentHandled:
		return "absent_handled"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Selection is the active model and environment.
type Selection struct {
	Model       string `json:"model"`
	Environment string `json:"environment"`
}

// Snapshot is the externally visible controller state.
type Snapshot struct {
	Selection Selection
	// Transform is nil when the latest frame had no face.
	Transform *detector.Transform
	Phase     Phase
	// LastSeenMs is the timestamp of the latest frame with a face. Only
	// meaningful in Present and AbsentPending.
	LastSeenMs int64
}

// Config holds the catalogs and switch pairs the controller works with.
type Config struct {
	Models          catalog.Catalog
	Environments    catalog.Catalog
	ModelPair       catalog.Pair
	EnvironmentPair catalog.Pair
	// ThresholdMs overrides AbsenceThresholdMs when positive.
	ThresholdMs int64
}

// DefaultConfig returns the built-in catalogs and pairs.
func DefaultConfig() Config {
	return Config{
		Models:          catalog.Models(),
		Environments:    catalog.Environments(),
		ModelPair:       catalog.ModelPair(),
		EnvironmentPair: catalog.EnvironmentPair(),
		ThresholdMs:     AbsenceThresholdMs,
	}
}

// Controller owns presence and selection state. It is not safe for concurrent
// use: frames and input events must be delivered from a single goroutine.
type Controller struct {
	config    Config
	selection Selection
	transform *detector.Transform
	phase     Phase
	lastSeen  int64
	switches  int
	onChange  func(Snapshot)
}

// NewController creates a Controller with the given initial selection.
func NewController(config Config, initial Selection) (*Controller, error) {
	if config.ThresholdMs <= 0 {
		config.ThresholdMs = AbsenceThresholdMs
	}
	if !config.Models.Contains(initial.Model) {
		return nil, fmt.Errorf("model %q: %w", initial.Model, ErrNotInCatalog)
	}
	if !config.Environments.Contains(initial.Environment) {
		return nil, fmt.Errorf("environment %q: %w", initial.Environment, ErrNotInCatalog)
	}

	return &Controller{
		config:    config,
		selection: initial,
		phase:     NeverSeen,
	}, nil
}

// OnChange sets the function called after every visible state change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.onChange = fn
}

// Observe processes one frame. t is nil when no face was detected.
// It reports whether the automatic switch fired on this frame.
func (c *Controller) Observe(timestampMs int64, t *detector.Transform) bool {
	if t != nil {
		tr := *t
		c.transform = &tr
		c.phase = Present
		c.lastSeen = timestampMs
		c.notify()
		return false
	}

	switch c.phase {
	case Present:
		c.phase = AbsentPending
		c.transform = nil
		c.notify()

	case AbsentPending:
		if timestampMs-c.lastSeen > c.config.ThresholdMs {
			c.autoSwitch()
			c.phase = AbsentHandled
			c.notify()
			return true
		}
	}

	return false
}

// autoSwitch toggles both axes between their paired values.
func (c *Controller) autoSwitch() {
	c.selection.Model = c.config.ModelPair.Toggle(c.selection.Model)
	c.selection.Environment = c.config.EnvironmentPair.Toggle(c.selection.Environment)
	c.switches++
}

// NextEnvironment advances the environment by one.
func (c *Controller) NextEnvironment() {
	c.setEnvironment(c.config.Environments.Next(c.selection.Environment))
}

// PreviousEnvironment moves the environment back by one.
func (c *Controller) PreviousEnvironment() {
	c.setEnvironment(c.config.Environments.Previous(c.selection.Environment))
}

// NextModel advances the model by one.
func (c *Controller) NextModel() {
	c.setModel(c.config.Models.Next(c.selection.Model))
}

// PreviousModel moves the model back by one.
func (c *Controller) PreviousModel() {
	c.setModel(c.config.Models.Previous(c.selection.Model))
}

func (c *Controller) setEnvironment(env string) {
	if env == c.selection.Environment {
		return
	}
	c.selection.Environment = env
	c.notify()
}

func (c *Controller) setModel(model string) {
	if model == c.selection.Model {
		return
	}
	c.selection.Model = model
	c.notify()
}

// Selection returns the current selection.
func (c *Controller) Selection() Selection {
	return c.selection
}

// Phase returns the current presence phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Transform returns a copy of the current head transform, or nil.
func (c *Controller) Transform() *detector.Transform {
	if c.transform == nil {
		return nil
	}
	t := *c.transform
	return &t
}

// Switches returns how many automatic switches have fired.
func (c *Controller) Switches() int {
	return c.switches
}

// Snapshot returns the current visible state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Selection:  c.selection,
		Transform:  c.Transform(),
		Phase:      c.phase,
		LastSeenMs: c.lastSeen,
	}
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}
