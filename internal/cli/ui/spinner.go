package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message while a long call runs. With animation off
// (output is not a terminal) it prints the message once.
type Spinner struct {
	w        io.Writer
	message  string
	animate  bool
	noColor  bool
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSpinner creates a spinner
func NewSpinner(w io.Writer, message string, animate, noColor bool) *Spinner {
	return &Spinner{w: w, message: message, animate: animate, noColor: noColor, interval: 100 * time.Millisecond}
}

// Start begins the animation
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	if !s.animate {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Spinner) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	cyan := newColor(s.noColor, color.FgCyan)
	for i := 0; ; i++ {
		select {
		case <-stop:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-ticker.C:
			cyan.Fprintf(s.w, "\r%s %s", frames[i%len(frames)], s.message)
		}
	}
}

// Stop halts the animation and clears the line
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

// Success stops and prints a check line
func (s *Spinner) Success(format string, args ...any) {
	s.Stop()
	Success(s.w, s.noColor, format, args...)
}

// Fail stops and prints a cross line
func (s *Spinner) Fail(format string, args ...any) {
	s.Stop()
	newColor(s.noColor, color.FgRed, color.Bold).Fprintf(s.w, "✗ %s\n", fmt.Sprintf(format, args...))
}
