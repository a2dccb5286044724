package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

const serviceScript = "face_landmarker_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe face landmarker
// subprocess running in VIDEO mode with transformation matrix output enabled.
type MediaPipeDetector struct {
	config Config
	script string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
}

// NewMediaPipeDetector starts the landmarker service and waits for it to report
// that the model is loaded. It blocks for as long as model loading takes, so
// callers normally run it through a Loader.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := findServiceScript()
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}

	d := &MediaPipeDetector{
		config: config,
		script: scriptPath,
	}

	if err := d.start(); err != nil {
		return nil, err
	}

	return d, nil
}

// Detect sends a frame to the service and returns the first face transform.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, timestampMs int64) (*Transform, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil {
		return nil, ErrDetectorClosed
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Header: timestamp (8 bytes) + length (4 bytes), big-endian
	header := make([]byte, 12)
	binary.BigEndian.PutUint64(header[:8], uint64(timestampMs))
	binary.BigEndian.PutUint32(header[8:], uint32(len(data)))

	if _, err := d.stdin.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseResponse(line)
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil {
		return nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) start() error {
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	cmd := exec.Command(pythonPath, d.script,
		"--model", d.config.ModelAssetPath,
		"--delegate", d.config.Delegate,
		"--num-faces", strconv.Itoa(d.config.NumFaces),
		"--min-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start landmarker service: %w", err)
	}

	reader := bufio.NewReader(stdout)

	// The service prints a single ready line once the model has loaded.
	line, err := reader.ReadBytes('\n')
	if err != nil {
		stdin.Close()
		cmd.Wait()
		return fmt.Errorf("wait for landmarker: %w", err)
	}
	if err := parseReady(line); err != nil {
		stdin.Close()
		cmd.Wait()
		return err
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = reader

	return nil
}

// readyMessage is the first line the service writes.
type readyMessage struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// detectResponse is one per-frame response line.
type detectResponse struct {
	FacialTransformationMatrixes [][]float64 `json:"facialTransformationMatrixes"`
	Error                        string      `json:"error,omitempty"`
}

func parseReady(line []byte) error {
	var msg readyMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return fmt.Errorf("parse ready message: %w", err)
	}
	if !msg.Ready {
		if msg.Error == "" {
			msg.Error = "not ready"
		}
		return fmt.Errorf("landmarker init: %s", msg.Error)
	}
	return nil
}

func parseResponse(line []byte) (*Transform, error) {
	var resp detectResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("landmarker: %s", resp.Error)
	}
	if len(resp.FacialTransformationMatrixes) == 0 {
		return nil, nil
	}

	t, ok := FromSlice(resp.FacialTransformationMatrixes[0])
	if !ok {
		return nil, fmt.Errorf("parse response: transform has %d values, want 16",
			len(resp.FacialTransformationMatrixes[0]))
	}
	return &t, nil
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".visor", "scripts", serviceScript),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".visor/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
