// Package app wires the viewer together: camera discovery, the face pose
// source, the presence controller and the scene composer.
package app

import (
	"context"
	"errors"
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/visor/internal/capture"
	"github.com/ayusman/visor/internal/detector"
	"github.com/ayusman/visor/internal/input"
	"github.com/ayusman/visor/internal/launch"
	"github.com/ayusman/visor/internal/presence"
	"github.com/ayusman/visor/internal/scene"
)

// EventBuffer is the capacity of the input event queue.
const EventBuffer = 32

// ErrAlreadyRunning is returned by Run when the app is already running.
var ErrAlreadyRunning = errors.New("app already running")

// FrameSink receives every captured frame before detection, e.g. the webcam
// stream. It must not keep the Mat.
type FrameSink interface {
	Update(frame *gocv.Mat) error
}

// Config holds configuration options for the application.
type Config struct {
	Launch       launch.Params
	CameraPrefer string
	Controller   presence.Config

	// Enumerator defaults to capture.DefaultEnumerator().
	Enumerator capture.Enumerator
	// OpenCamera defaults to capture.NewCamera.
	OpenCamera func(capture.Device) capture.Camera
	// Source bypasses camera discovery when set.
	Source *capture.FrameSource
	// Detector creates the pose source. Defaults to MediaPipe.
	Detector detector.InitFunc

	Composer scene.Composer
	Sink     FrameSink
}

// DefaultConfig returns a Config for the default launch parameters.
func DefaultConfig() Config {
	return Config{
		Launch:       launch.Defaults(),
		CameraPrefer: capture.DefaultPreferred,
		Controller:   presence.DefaultConfig(),
	}
}

// Status is a thread-safe summary of the running app.
type Status struct {
	Detector    string `json:"detector"`
	Camera      string `json:"camera"`
	Model       string `json:"model"`
	Environment string `json:"environment"`
	Phase       string `json:"phase"`
	HeadVisible bool   `json:"headVisible"`
	Switches    int    `json:"switches"`
}

type videoInput struct {
	device capture.Device
	camera capture.Camera
	source *capture.FrameSource
}

// App is the viewer application. The controller is only touched from the
// goroutine running Run.
type App struct {
	config     Config
	loader     *detector.Loader
	controller *presence.Controller
	events     chan input.Event
	inputs     chan videoInput

	// Owned by the Run goroutine.
	head         bool
	detectErrors int

	mu      sync.RWMutex
	status  Status
	running bool
}

// New creates an App. Launch values that are not in the catalogs are replaced
// by the defaults with a warning.
func New(config Config) (*App, error) {
	if config.Controller.Models.Len() == 0 {
		config.Controller = presence.DefaultConfig()
	}
	if config.Enumerator == nil {
		config.Enumerator = capture.DefaultEnumerator()
	}
	if config.OpenCamera == nil {
		config.OpenCamera = capture.NewCamera
	}
	if config.Detector == nil {
		config.Detector = mediaPipeInit
	}
	if config.Composer == nil {
		config.Composer = scene.ComposerFunc(func(scene.Snapshot) {})
	}

	initial := resolveSelection(config.Controller, config.Launch)
	controller, err := presence.NewController(config.Controller, initial)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:     config,
		loader:     detector.NewLoader(config.Detector),
		controller: controller,
		events:     make(chan input.Event, EventBuffer),
		inputs:     make(chan videoInput, 1),
		head:       config.Launch.HeadVisible,
		status:     Status{Detector: detector.StatePending.String(), Camera: "none"},
	}
	controller.OnChange(a.compose)
	return a, nil
}

func mediaPipeInit(ctx context.Context) (detector.Detector, error) {
	return detector.NewMediaPipeDetector(detector.DefaultConfig())
}

// resolveSelection applies the launch selection, falling back per axis to the
// default when a value is not in the catalog.
func resolveSelection(cfg presence.Config, p launch.Params) presence.Selection {
	sel := presence.Selection{Model: p.Model, Environment: p.Environment}
	defaults := launch.Defaults()

	if !cfg.Models.Contains(sel.Model) {
		fallback := defaults.Model
		if !cfg.Models.Contains(fallback) {
			fallback = cfg.Models.First()
		}
		log.Printf("Unknown model %q, using %q", sel.Model, fallback)
		sel.Model = fallback
	}
	if !cfg.Environments.Contains(sel.Environment) {
		fallback := defaults.Environment
		if !cfg.Environments.Contains(fallback) {
			fallback = cfg.Environments.First()
		}
		log.Printf("Unknown environment %q, using %q", sel.Environment, fallback)
		sel.Environment = fallback
	}

	return sel
}

// Send queues an input event for the app loop. It never blocks; events are
// dropped with a log message when the queue is full.
func (a *App) Send(ev input.Event) {
	select {
	case a.events <- ev:
	default:
		log.Printf("Dropping %s from %s: event queue full", ev.Action, ev.Source)
	}
}

// Forward sends every event from ch to the app until ch closes or ctx is done.
func (a *App) Forward(ctx context.Context, ch <-chan input.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			a.Send(ev)
		}
	}
}

// Loader returns the detector loader.
func (a *App) Loader() *detector.Loader {
	return a.loader
}

// Status returns a summary safe to call from any goroutine.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.status
	s.Detector = a.loader.State().String()
	return s
}

// StatusFields returns Status as a map for the health endpoint.
func (a *App) StatusFields() map[string]any {
	s := a.Status()
	return map[string]any{
		"detector":    s.Detector,
		"camera":      s.Camera,
		"model":       s.Model,
		"environment": s.Environment,
		"phase":       s.Phase,
		"headVisible": s.HeadVisible,
		"switches":    s.Switches,
	}
}

// compose is the controller's change listener.
func (a *App) compose(s presence.Snapshot) {
	a.mu.Lock()
	a.status.Model = s.Selection.Model
	a.status.Environment = s.Selection.Environment
	a.status.Phase = s.Phase.String()
	a.status.HeadVisible = a.head
	a.status.Switches = a.controller.Switches()
	a.mu.Unlock()

	a.config.Composer.Compose(scene.Build(s, a.head))
}

func (a *App) setCamera(name string) {
	a.mu.Lock()
	a.status.Camera = name
	a.mu.Unlock()
}
