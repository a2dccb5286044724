package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// DefaultPreferred is the label substring of the preferred webcam.
const DefaultPreferred = "facetime"

// ErrNoDevice is returned when no video input device is available.
var ErrNoDevice = errors.New("no video input device")

// Device is a video input device.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Index is the OpenCV capture index.
	Index int `json:"index"`
}

func (d Device) String() string {
	if d.Label == "" {
		return fmt.Sprintf("camera %d", d.Index)
	}
	return fmt.Sprintf("%s (%d)", d.Label, d.Index)
}

// Enumerator lists video input devices.
type Enumerator interface {
	ListVideoInputDevices(ctx context.Context) ([]Device, error)
}

// SelectDevice picks the first device whose label contains prefer
// (case-insensitive), else the first device. It returns false for an empty list.
func SelectDevice(devices []Device, prefer string) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}

	if prefer != "" {
		needle := strings.ToLower(prefer)
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Label), needle) {
				return d, true
			}
		}
	}

	return devices[0], true
}

// SysfsEnumerator lists V4L2 capture nodes from /sys/class/video4linux.
type SysfsEnumerator struct {
	// Root defaults to /sys/class/video4linux.
	Root string
}

// ListVideoInputDevices returns capture devices ordered by index. Metadata
// nodes (a non-zero "index" attribute) are skipped.
func (e SysfsEnumerator) ListVideoInputDevices(ctx context.Context) ([]Device, error) {
	root := e.Root
	if root == "" {
		root = "/sys/class/video4linux"
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var devices []Device
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
		if err != nil {
			continue
		}

		dir := filepath.Join(root, name)
		if nodeIndex, err := os.ReadFile(filepath.Join(dir, "index")); err == nil {
			if strings.TrimSpace(string(nodeIndex)) != "0" {
				continue
			}
		}

		label := ""
		if data, err := os.ReadFile(filepath.Join(dir, "name")); err == nil {
			label = strings.TrimSpace(string(data))
		}

		devices = append(devices, Device{
			ID:    "/dev/" + name,
			Label: label,
			Index: index,
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Index < devices[j].Index
	})

	return devices, nil
}

// ProbeEnumerator finds devices by opening capture indices in turn. It is the
// fallback where device labels are not available.
type ProbeEnumerator struct {
	// Max is the number of indices to try (default 4).
	Max int
	// Open reports whether the index can be opened. Defaults to OpenCV.
	Open func(index int) bool
}

// ListVideoInputDevices returns every index that opened, labelled "Camera N".
func (e ProbeEnumerator) ListVideoInputDevices(ctx context.Context) ([]Device, error) {
	limit := e.Max
	if limit <= 0 {
		limit = 4
	}
	open := e.Open
	if open == nil {
		open = probeOpenCV
	}

	var devices []Device
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !open(i) {
			continue
		}
		devices = append(devices, Device{
			ID:    strconv.Itoa(i),
			Label: fmt.Sprintf("Camera %d", i),
			Index: i,
		})
	}

	return devices, nil
}

func probeOpenCV(index int) bool {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return false
	}
	defer vc.Close()
	return vc.IsOpened()
}

// FallbackEnumerator tries each enumerator in order and returns the first
// non-empty result.
type FallbackEnumerator []Enumerator

// ListVideoInputDevices implements Enumerator.
func (f FallbackEnumerator) ListVideoInputDevices(ctx context.Context) ([]Device, error) {
	var lastErr error
	for _, e := range f {
		devices, err := e.ListVideoInputDevices(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if len(devices) > 0 {
			return devices, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// DefaultEnumerator uses sysfs labels where available and falls back to probing.
func DefaultEnumerator() Enumerator {
	return FallbackEnumerator{SysfsEnumerator{}, ProbeEnumerator{}}
}

// Discover enumerates devices and selects one.
func Discover(ctx context.Context, e Enumerator, prefer string) (Device, error) {
	devices, err := e.ListVideoInputDevices(ctx)
	if err != nil {
		return Device{}, fmt.Errorf("list video devices: %w", err)
	}

	d, ok := SelectDevice(devices, prefer)
	if !ok {
		return Device{}, ErrNoDevice
	}
	return d, nil
}
