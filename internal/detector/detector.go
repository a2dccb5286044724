// Package detector provides the head pose source: a face landmarker that turns
// a video frame into a head transform, or reports that no face was found.
package detector

import "gocv.io/x/gocv"

// Detector defines the interface for head pose implementations.
type Detector interface {
	// Detect analyzes a video frame captured at timestampMs and returns the
	// transform of the first detected face. It returns nil, nil when no face
	// is found.
	Detect(frame *gocv.Mat, timestampMs int64) (*Transform, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for the face landmarker.
type Config struct {
	// ModelAssetPath is the landmarker model bundle (default: face_landmarker.task).
	ModelAssetPath string

	// Delegate selects the inference backend, "GPU" or "CPU".
	Delegate string

	// NumFaces is the maximum number of faces to detect. Only the first is used.
	NumFaces int

	// MinConfidence is the minimum face detection confidence (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelAssetPath:  "face_landmarker.task",
		Delegate:        "GPU",
		NumFaces:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
