package app

import (
	"context"
	"errors"
	"log"

	"github.com/ayusman/visor/internal/capture"
	"github.com/ayusman/visor/internal/input"
)

// Run starts the pose source and camera in the background and runs the app
// loop until ctx is done. The composer receives the initial scene before any
// frame is processed.
//
// Loop logic:
// 1. Frames are ignored until the pose source is ready
// 2. Each frame goes to the sink, then to the detector
// 3. The detector result goes to the controller, which notifies the composer
// 4. Input events cycle the selection or toggle the head mesh
// 5. Detection errors skip the frame without counting it as absence
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.loader.Start(ctx)

	if a.config.Source != nil {
		a.inputs <- videoInput{source: a.config.Source}
	} else {
		go a.openCamera(ctx)
	}

	a.compose(a.controller.Snapshot())
	log.Printf("Viewer started with %s in %s", a.controller.Selection().Model, a.controller.Selection().Environment)

	var (
		video    videoInput
		frames   <-chan struct{}
		detReady = a.loader.Done()
	)

	defer func() {
		a.shutdown(video)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-detReady:
			detReady = nil
			if _, err := a.loader.Detector(); err != nil {
				log.Printf("Face tracking unavailable: %v", err)
			} else {
				log.Println("Face tracking ready")
			}

		case v := <-a.inputs:
			video = v
			frames = v.source.Ready()
			if v.camera != nil {
				a.setCamera(v.device.String())
			} else {
				a.setCamera("external")
			}

		case <-frames:
			if f := video.source.TryNext(); f != nil {
				a.processFrame(f)
			}

		case ev := <-a.events:
			a.handleEvent(ev)
		}
	}
}

// openCamera discovers and opens the camera, then hands the running frame
// source to the loop.
func (a *App) openCamera(ctx context.Context) {
	device, err := capture.Discover(ctx, a.config.Enumerator, a.config.CameraPrefer)
	if err != nil {
		if errors.Is(err, capture.ErrNoDevice) {
			log.Println("No camera found, showing the scene without face tracking")
		} else {
			log.Printf("Camera discovery failed: %v", err)
		}
		return
	}

	cam := a.config.OpenCamera(device)
	if err := cam.Open(); err != nil {
		log.Printf("Failed to open camera: %v", err)
		return
	}
	log.Printf("Using camera %s", device)

	src := capture.NewFrameSource(cam, 0)
	go src.Run(ctx)

	select {
	case a.inputs <- videoInput{device: device, camera: cam, source: src}:
	case <-ctx.Done():
		src.Close()
		cam.Close()
	}
}

// processFrame feeds one frame through the pose source and controller.
func (a *App) processFrame(f *capture.Frame) {
	defer f.Close()

	if a.config.Sink != nil {
		if err := a.config.Sink.Update(f.Mat); err != nil {
			log.Printf("Error updating frame sink: %v", err)
		}
	}

	det, err := a.loader.Detector()
	if err != nil {
		return
	}

	t, err := det.Detect(f.Mat, f.TimestampMs)
	if err != nil {
		a.detectErrors++
		if a.detectErrors == 1 || a.detectErrors%100 == 0 {
			log.Printf("Error detecting face (%d so far): %v", a.detectErrors, err)
		}
		return
	}

	if a.controller.Observe(f.TimestampMs, t) {
		sel := a.controller.Selection()
		log.Printf("Face lost, switched to %s in %s", sel.Model, sel.Environment)
	}
}

// handleEvent applies one input event.
func (a *App) handleEvent(ev input.Event) {
	if input.Apply(a.controller, ev.Action) {
		sel := a.controller.Selection()
		log.Printf("%s (%s): %s in %s", ev.Action, ev.Source, sel.Model, sel.Environment)
		return
	}

	switch ev.Action {
	case input.ActionToggleHead:
		a.head = !a.head
		a.compose(a.controller.Snapshot())
	case input.ActionFullscreen:
		log.Printf("Fullscreen requested by %s", ev.Source)
	}
}

func (a *App) shutdown(v videoInput) {
	if v.source != nil && v.source != a.config.Source {
		v.source.Close()
	}
	if v.camera != nil {
		if err := v.camera.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}
	}
	if err := a.loader.Close(); err != nil {
		log.Printf("Error closing detector: %v", err)
	}

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	log.Println("Viewer stopped")
}
