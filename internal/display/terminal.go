// Package display draws the bell screen in a terminal: the headline, the
// countdown and a progress bar, coloured by priority state.
package display

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/sweeney/bell-scheduler/internal/logic"
)

// Terminal is a render sink backed by a tcell screen.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	footer string

	quit     chan struct{}
	quitOnce sync.Once
	finiOnce sync.Once
}

// Open initialises the controlling terminal.
func Open() (*Terminal, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise terminal: %w", err)
	}
	return New(s), nil
}

// New wraps an initialised screen.
func New(s tcell.Screen) *Terminal {
	s.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))
	s.HideCursor()
	s.Clear()
	return &Terminal{screen: s, quit: make(chan struct{})}
}

// SetFooter sets the status line drawn at the bottom.
func (t *Terminal) SetFooter(text string) {
	t.mu.Lock()
	t.footer = text
	t.mu.Unlock()
}

// Show draws d and flushes the screen.
func (t *Terminal) Show(d logic.DisplayState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draw(d)
	t.screen.Show()
}

func styleFor(k logic.DisplayKind) tcell.Style {
	switch k {
	case logic.DisplayAlarm:
		return tcell.StyleDefault.Background(tcell.ColorRed).Foreground(tcell.ColorWhite)
	case logic.DisplayMinuteOfSilence:
		return tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorWhite)
	case logic.DisplayInBreak:
		return tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightGreen)
	}
	return tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
}

func (t *Terminal) draw(d logic.DisplayState) {
	w, h := t.screen.Size()
	style := styleFor(d.Kind)
	t.screen.Fill(' ', style)
	t.border(w, h, style)

	mid := h / 2
	t.centered(mid-2, w, d.Title(), style.Bold(true))
	if d.HasCountdown() {
		t.centered(mid, w, d.Countdown(), style.Bold(true))
		t.bar(4, mid+2, w-8, d.Fraction, style)
	}
	if t.footer != "" {
		t.text(2, h-2, w-4, t.footer, style.Dim(true))
	}
}

func (t *Terminal) border(w, h int, style tcell.Style) {
	if w < 2 || h < 2 {
		return
	}
	for x := 1; x < w-1; x++ {
		t.screen.SetContent(x, 0, tcell.RuneHLine, nil, style)
		t.screen.SetContent(x, h-1, tcell.RuneHLine, nil, style)
	}
	for y := 1; y < h-1; y++ {
		t.screen.SetContent(0, y, tcell.RuneVLine, nil, style)
		t.screen.SetContent(w-1, y, tcell.RuneVLine, nil, style)
	}
	t.screen.SetContent(0, 0, tcell.RuneULCorner, nil, style)
	t.screen.SetContent(w-1, 0, tcell.RuneURCorner, nil, style)
	t.screen.SetContent(0, h-1, tcell.RuneLLCorner, nil, style)
	t.screen.SetContent(w-1, h-1, tcell.RuneLRCorner, nil, style)
}

func (t *Terminal) centered(y, w int, s string, style tcell.Style) {
	n := len([]rune(s))
	x := (w - n) / 2
	if x < 1 {
		x = 1
	}
	t.text(x, y, w-1-x, s, style)
}

// text draws s from (x, y), clipped to max cells.
func (t *Terminal) text(x, y, max int, s string, style tcell.Style) {
	i := 0
	for _, r := range s {
		if i >= max {
			return
		}
		t.screen.SetContent(x+i, y, r, nil, style)
		i++
	}
}

func (t *Terminal) bar(x, y, width int, fraction float64, style tcell.Style) {
	if width <= 0 {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	done := int(fraction * float64(width))
	for i := 0; i < width; i++ {
		r := '░'
		if i < done {
			r = '█'
		}
		t.screen.SetContent(x+i, y, r, nil, style)
	}
}

// Run handles terminal events until the user quits (Esc, Ctrl-C or q) or
// the screen is closed. Run it on its own goroutine.
func (t *Terminal) Run() {
	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			t.stop()
			return
		case *tcell.EventResize:
			t.mu.Lock()
			t.screen.Sync()
			t.mu.Unlock()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				t.stop()
				return
			}
		}
	}
}

func (t *Terminal) stop() {
	t.quitOnce.Do(func() { close(t.quit) })
}

// Done is closed when the user asks to quit.
func (t *Terminal) Done() <-chan struct{} {
	return t.quit
}

// Close restores the terminal.
func (t *Terminal) Close() {
	t.finiOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.screen.Fini()
	})
}
