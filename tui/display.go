package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	pbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/milmillin/copyem/progress"
	"github.com/milmillin/copyem/units"
)

type tickMsg struct{}
type stopMsg struct{}

type model struct {
	viewFn      func() progress.View
	view        progress.View
	bar         pbar.Model
	onInterrupt func()
	quitting    bool
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			m.quitting = true
			return m, nil
		}
	case tickMsg:
		m.view = m.viewFn()
		return m, nil
	case stopMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	out := render(m.view, m.bar)
	if m.quitting {
		out += "\n" + HelpStyle.Render("stopping, waiting for streams to wind down")
	}
	return out
}

// render builds the full display frame from one progress snapshot.
func render(v progress.View, bar pbar.Model) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("copyem"))
	b.WriteString("\n\n")

	frac := v.Stats.Percent / 100
	if frac > 1 {
		frac = 1
	}
	b.WriteString(bar.ViewAs(frac))
	fmt.Fprintf(&b, " %5.1f%%\n", v.Stats.Percent)

	fmt.Fprintf(&b, "%s %s / %s",
		LabelStyle.Render("moved"),
		units.FormatSize(v.Stats.BytesDone),
		units.FormatSize(v.Stats.Total))
	if v.Stats.RateBps > 0 {
		fmt.Fprintf(&b, "   %s %s/s",
			LabelStyle.Render("rate"),
			units.FormatSize(int64(v.Stats.RateBps)))
	}
	if v.Stats.ETA > 0 {
		fmt.Fprintf(&b, "   %s %s",
			LabelStyle.Render("eta"),
			units.FormatSeconds(v.Stats.ETA.Seconds()))
	}
	b.WriteString("\n\n")

	for _, line := range v.Streams {
		style := ActiveStyle
		if line.FilesTotal > 0 && line.FilesDone >= line.FilesTotal {
			style = DoneStyle
		}
		row := fmt.Sprintf("stream %d  %3d/%-3d", line.Stream, line.FilesDone, line.FilesTotal)
		if line.LastFile != "" {
			row += "  " + line.LastFile
		}
		b.WriteString(style.Render(row))
		b.WriteString("\n")
		if line.Status != "" {
			b.WriteString(LabelStyle.Render("  " + line.Status))
			b.WriteString("\n")
		}
	}

	b.WriteString(HelpStyle.Render("press q or ctrl+c to stop"))
	return b.String()
}

// Display runs the live view in the background until Stop.
type Display struct {
	program *tea.Program
	ticker  *time.Ticker
	stop    chan struct{}
	ran     chan struct{}
}

// Start launches the display. viewFn is polled on every tick; onInterrupt
// is invoked when the user asks to stop, so the caller can cancel the run
// context while pipelines drain.
func Start(ctx context.Context, w io.Writer, viewFn func() progress.View, onInterrupt func()) *Display {
	m := model{
		viewFn:      viewFn,
		view:        viewFn(),
		bar:         pbar.New(pbar.WithDefaultGradient(), pbar.WithoutPercentage()),
		onInterrupt: onInterrupt,
	}
	d := &Display{
		program: tea.NewProgram(m, tea.WithOutput(w)),
		ticker:  time.NewTicker(250 * time.Millisecond),
		stop:    make(chan struct{}),
		ran:     make(chan struct{}),
	}

	go func() {
		defer close(d.ran)
		_, _ = d.program.Run()
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			case <-d.ticker.C:
				d.program.Send(tickMsg{})
			}
		}
	}()

	return d
}

// Stop renders one final frame, shuts the display down, and waits for the
// terminal to be released.
func (d *Display) Stop() {
	close(d.stop)
	d.ticker.Stop()
	d.program.Send(tickMsg{})
	d.program.Send(stopMsg{})
	<-d.ran
}
