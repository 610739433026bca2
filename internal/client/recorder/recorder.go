// Package recorder captures voice notes by running an external audio
// capture command that writes a WAV stream to stdout.
package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

var (
	ErrNotRecording     = errors.New("recorder is idle")
	ErrAlreadyRecording = errors.New("recorder is already running")
	ErrNoCommand        = errors.New("no recorder command configured")
)

// DefaultCommand records 16 kHz mono WAV from the default ALSA device.
var DefaultCommand = []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-t", "wav", "-"}

// Recorder is either idle or recording.
type Recorder struct {
	command []string
	now     func() time.Time

	mu      sync.Mutex
	cmd     *exec.Cmd
	buf     *bytes.Buffer
	started time.Time
}

// New returns a recorder running command. An empty command uses DefaultCommand.
func New(command []string) *Recorder {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &Recorder{command: command, now: time.Now}
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Start launches the capture command.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return ErrAlreadyRecording
	}
	if len(r.command) == 0 || r.command[0] == "" {
		return ErrNoCommand
	}

	buf := &bytes.Buffer{}
	cmd := exec.Command(r.command[0], r.command[1:]...)
	cmd.Stdout = buf
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.command[0], err)
	}
	r.cmd = cmd
	r.buf = buf
	r.started = r.now()
	return nil
}

// Stop ends the capture and returns what was recorded along with how long
// the recorder ran.
func (r *Recorder) Stop() ([]byte, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil, 0, ErrNotRecording
	}
	cmd, buf := r.cmd, r.buf
	elapsed := r.now().Sub(r.started)
	r.cmd, r.buf = nil, nil

	// Capture tools flush and finalize the WAV header on SIGINT.
	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = cmd.Process.Kill()
	}
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, 0, fmt.Errorf("wait for recorder: %w", err)
		}
	}
	return buf.Bytes(), elapsed, nil
}
