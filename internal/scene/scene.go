// Package scene defines what the viewer sends to the 3D scene composer: the
// selected helmet and environment, the head pose, and the fixed render options.
package scene

import (
	"github.com/ayusman/visor/internal/detector"
	"github.com/ayusman/visor/internal/presence"
)

// Composer renders scene snapshots. The composer loads and caches the model
// and environment assets itself.
type Composer interface {
	Compose(s Snapshot)
}

// ComposerFunc adapts a function to the Composer interface.
type ComposerFunc func(s Snapshot)

// Compose calls f(s).
func (f ComposerFunc) Compose(s Snapshot) {
	f(s)
}

// Camera holds the virtual camera settings. The camera sits at the origin so
// that head transforms in camera space can be used directly.
type Camera struct {
	Position [3]float64 `json:"position"`
	FOV      float64    `json:"fov"`
}

// Bloom holds the post-processing bloom settings.
type Bloom struct {
	LuminanceThreshold float64 `json:"luminanceThreshold"`
	LuminanceSmoothing float64 `json:"luminanceSmoothing"`
	Height             int     `json:"height"`
}

// HeadMesh describes the occluding head mesh drawn under the helmet.
type HeadMesh struct {
	Asset   string  `json:"asset"`
	Visible bool    `json:"visible"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
	// ColorWrite and Transparent follow Visible; an invisible head still
	// writes depth so it hides the back of the helmet.
	ColorWrite  bool       `json:"colorWrite"`
	Transparent bool       `json:"transparent"`
	Scale       [3]float64 `json:"scale"`
	// Matrix is the head transform with Scale applied, nil without a face.
	Matrix *detector.Transform `json:"matrix,omitempty"`
}

// Options are render settings that never change during a session.
type Options struct {
	Camera Camera `json:"camera"`
	Bloom  Bloom  `json:"bloom"`
	// EnvironmentBackground shows the environment map as background instead of
	// using it for lighting only.
	EnvironmentBackground bool `json:"environmentBackground"`
}

// DefaultOptions returns the viewer's render settings.
func DefaultOptions() Options {
	return Options{
		Camera: Camera{FOV: 60},
		Bloom: Bloom{
			LuminanceThreshold: 0,
			LuminanceSmoothing: 0.7,
			Height:             300,
		},
		EnvironmentBackground: false,
	}
}

// HeadScale shrinks the head mesh so the ears stay inside the helmet.
var HeadScale = [3]float64{0.8, 0.9, 1.0}

// Position is the head position in camera space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Snapshot is a complete description of one frame of the scene.
type Snapshot struct {
	Model       string              `json:"model"`
	Environment string              `json:"environment"`
	Transform   *detector.Transform `json:"transform,omitempty"`
	Position    *Position           `json:"position,omitempty"`
	Phase       string              `json:"phase"`
	Head        HeadMesh            `json:"head"`
	Options     Options             `json:"options"`
}

// Build creates a Snapshot from controller state.
func Build(s presence.Snapshot, headVisible bool) Snapshot {
	out := Snapshot{
		Model:       s.Selection.Model,
		Environment: s.Selection.Environment,
		Phase:       s.Phase.String(),
		Head: HeadMesh{
			Asset:       "head.glb",
			Visible:     headVisible,
			Color:       "#0000ff",
			Opacity:     0.5,
			ColorWrite:  headVisible,
			Transparent: headVisible,
			Scale:       HeadScale,
		},
		Options: DefaultOptions(),
	}

	if s.Transform != nil {
		t := *s.Transform
		out.Transform = &t

		p := t.Position()
		out.Position = &Position{X: p.X, Y: p.Y, Z: p.Z}

		m := t.Mul(detector.Scale(HeadScale[0], HeadScale[1], HeadScale[2]))
		out.Head.Matrix = &m
	}

	return out
}
