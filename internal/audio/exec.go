package audio

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultCommand is the player used when none is configured.
const DefaultCommand = "aplay -q"

// ExecPlayer plays files by starting an external command per sound.
type ExecPlayer struct {
	argv []string

	mu       sync.Mutex
	track    *exec.Cmd
	loop     *exec.Cmd
	loopStop chan struct{}
	loopDone chan struct{}
}

// NewExecPlayer creates a player running command (split on spaces) with the
// sound path appended.
func NewExecPlayer(command string) *ExecPlayer {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		argv = strings.Fields(DefaultCommand)
	}
	return &ExecPlayer{argv: argv}
}

func (p *ExecPlayer) command(path string) *exec.Cmd {
	args := append(append([]string{}, p.argv[1:]...), path)
	return exec.Command(p.argv[0], args...)
}

// Play starts path on the track channel, replacing whatever is playing.
func (p *ExecPlayer) Play(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s: %w", path, ErrResourceUnavailable)
	}
	cmd := p.command(path)

	p.mu.Lock()
	defer p.mu.Unlock()
	stopCmd(p.track)
	if err := cmd.Start(); err != nil {
		p.track = nil
		return fmt.Errorf("start %s: %w", p.argv[0], err)
	}
	p.track = cmd
	go cmd.Wait()
	return nil
}

// Stop ends the current track.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	stopCmd(p.track)
	p.track = nil
}

// Loop plays path over and over until StopLoop. A loop already running is
// left alone.
func (p *ExecPlayer) Loop(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s: %w", path, ErrResourceUnavailable)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loopStop != nil {
		return nil
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	p.loopStop, p.loopDone = stop, done

	go func() {
		defer close(done)
		for {
			cmd := p.command(path)
			p.mu.Lock()
			select {
			case <-stop:
				p.mu.Unlock()
				return
			default:
			}
			err := cmd.Start()
			if err == nil {
				p.loop = cmd
			}
			p.mu.Unlock()
			if err != nil {
				log.Printf("siren loop: start %s: %v", p.argv[0], err)
				return
			}

			started := time.Now()
			cmd.Wait()

			select {
			case <-stop:
				return
			default:
			}
			// A player that exits immediately would spin.
			if time.Since(started) < 100*time.Millisecond {
				select {
				case <-stop:
					return
				case <-time.After(time.Second):
				}
			}
		}
	}()
	return nil
}

// StopLoop ends the siren and waits for the loop goroutine to exit.
func (p *ExecPlayer) StopLoop() {
	p.mu.Lock()
	stop, done := p.loopStop, p.loopDone
	if stop == nil {
		p.mu.Unlock()
		return
	}
	close(stop)
	stopCmd(p.loop)
	p.loop = nil
	p.loopStop, p.loopDone = nil, nil
	p.mu.Unlock()
	<-done
}

// Looping reports whether the siren is running.
func (p *ExecPlayer) Looping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopStop != nil
}

// Close stops both channels.
func (p *ExecPlayer) Close() {
	p.Stop()
	p.StopLoop()
}

func stopCmd(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
