package music

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	"github.com/cloudzz-dev/speakly/internal/models"
)

var ErrNothingPlaying = errors.New("nothing is playing")

// Playlist holds tracks in insertion order, each at most once.
type Playlist struct {
	mu     sync.Mutex
	tracks []models.Track
}

// Add appends t unless a track with the same id is already there.
func (p *Playlist) Add(t models.Track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, have := range p.tracks {
		if have.ID == t.ID {
			return false
		}
	}
	p.tracks = append(p.tracks, t)
	return true
}

func (p *Playlist) Remove(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, t := range p.tracks {
		if t.ID == id {
			p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Playlist) Tracks() []models.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Track(nil), p.tracks...)
}

func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "stopped"
}

// Player tracks what is playing. With a command configured it also runs
// that command with the preview URL appended; pause and resume map to
// SIGSTOP and SIGCONT on the process.
type Player struct {
	command []string

	mu      sync.Mutex
	state   State
	current *models.Track
	proc    *exec.Cmd
}

func NewPlayer(command []string) *Player {
	return &Player{command: command}
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Current() *models.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	t := *p.current
	return &t
}

// Play starts t, replacing whatever was playing.
func (p *Player) Play(t models.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	if len(p.command) > 0 {
		args := append(append([]string(nil), p.command[1:]...), t.PreviewURL)
		cmd := exec.Command(p.command[0], args...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start player: %w", err)
		}
		p.proc = cmd
		go p.reap(cmd)
	}
	p.current = &t
	p.state = Playing
	return nil
}

// reap returns the player to stopped when the process ends on its own.
func (p *Player) reap(cmd *exec.Cmd) {
	_ = cmd.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proc == cmd {
		p.proc = nil
		p.current = nil
		p.state = Stopped
	}
}

// Toggle pauses a playing track or resumes a paused one.
func (p *Player) Toggle() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Playing:
		if err := p.signal(syscall.SIGSTOP); err != nil {
			return err
		}
		p.state = Paused
	case Paused:
		if err := p.signal(syscall.SIGCONT); err != nil {
			return err
		}
		p.state = Playing
	default:
		return ErrNothingPlaying
	}
	return nil
}

func (p *Player) signal(sig syscall.Signal) error {
	if p.proc == nil || p.proc.Process == nil {
		return nil
	}
	return p.proc.Process.Signal(sig)
}

func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.proc != nil && p.proc.Process != nil {
		_ = p.proc.Process.Kill()
	}
	p.proc = nil
	p.current = nil
	p.state = Stopped
}
