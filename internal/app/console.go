// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/logrusorgru/aurora"
	colorful "github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/relabs-tech/sensorscope/internal/chart"
	"github.com/relabs-tech/sensorscope/internal/config"
	"github.com/relabs-tech/sensorscope/internal/logging"
	"github.com/relabs-tech/sensorscope/internal/selector"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

const (
	ViewMenu   = "menu"
	ViewChart  = "chart"
	ViewLogs   = "logs"
	ViewStatus = "status"
	ViewSmall  = "small"

	consoleRefresh = 100 * time.Millisecond
	logLines       = 200

	// the chart pane needs two rows below the menu and above the logs
	minConsoleRows = 14
	minConsoleCols = 20
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// logBuffer keeps the last lines written to it. The console points the
// logger here since stderr belongs to the UI.
type logBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
	part  string
}

func newLogBuffer(max int) *logBuffer {
	return &logBuffer{max: max}
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chunks := strings.Split(b.part+string(p), "\n")
	b.part = chunks[len(chunks)-1]
	b.lines = append(b.lines, chunks[:len(chunks)-1]...)
	if len(b.lines) > b.max {
		b.lines = append(b.lines[:0:0], b.lines[len(b.lines)-b.max:]...)
	}
	return len(p), nil
}

// Tail returns up to n of the most recent complete lines.
func (b *logBuffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.lines) {
		n = len(b.lines)
	}
	return append([]string(nil), b.lines[len(b.lines)-n:]...)
}

// Console is the terminal front end: the menu, the chart, recent log lines
// and a status line.
type Console struct {
	sel   *selector.Selector
	relay *modeRelay
	au    aurora.Aurora
	log   *zap.SugaredLogger
	logs  *logBuffer

	mu     sync.Mutex
	status string
}

// NewConsole builds the UI. logs may be nil.
func NewConsole(sel *selector.Selector, relay *modeRelay, logs *logBuffer, colors bool) *Console {
	if logs == nil {
		logs = newLogBuffer(logLines)
	}
	return &Console{
		sel:   sel,
		relay: relay,
		au:    aurora.NewAurora(colors),
		log:   logging.Named("console"),
		logs:  logs,
	}
}

// Select switches mode and records the outcome for the status line.
func (c *Console) Select(mode sensors.Kind) error {
	err := c.sel.SelectMode(mode)
	switch {
	case err == nil:
		c.log.Infow("mode selected from keyboard", "mode", mode)
		c.setStatus(fmt.Sprintf("%s selected", mode.Label()))
		c.relay.Announce(c.sel)
	case errors.Is(err, sensors.ErrUnavailable):
		c.setStatus(fmt.Sprintf("%s is not available on this device", mode.Label()))
	default:
		c.setStatus(err.Error())
	}
	return err
}

func (c *Console) setStatus(s string) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Status returns the last selection message.
func (c *Console) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// MenuLine renders the three menu entries with their keys.
func (c *Console) MenuLine(items []selector.MenuItem) string {
	parts := make([]string, 0, len(items))
	for i, item := range items {
		label := fmt.Sprintf("[%d] %s", i+1, item.Label)
		switch {
		case item.Active:
			parts = append(parts, c.au.Bold(c.au.Cyan(label)).String())
		case !item.Available:
			parts = append(parts, c.au.Gray(8, label+" (n/a)").String())
		default:
			parts = append(parts, label)
		}
	}
	return strings.Join(parts, "   ") + "   [q] quit"
}

// ChartLines renders st as text for a view of the given width.
func (c *Console) ChartLines(st chart.State, width int) []string {
	if width < 20 {
		width = 20
	}
	if !st.Mode.Valid() {
		return []string{"No sensor selected"}
	}

	lines := []string{
		fmt.Sprintf("%s: %s v%d (%s)", st.Title, st.Sensor.Name, st.Sensor.Version, st.Sensor.Vendor),
		"",
	}

	switch st.Mode {
	case sensors.Accelerometer, sensors.Gyroscope:
		barWidth := width - 18
		for _, s := range st.Series {
			v := 0.0
			if len(s.Points) > 0 {
				v = s.Points[0].Y
			}
			bar := centeredBar(v, st.Bounds.MaxY, barWidth)
			lines = append(lines, fmt.Sprintf("%-6s %+8.2f %s", s.Name, v, c.colorize(s.Color, bar)))
		}
	case sensors.Light:
		s := st.Series[0]
		last := 0.0
		if n := len(s.Points); n > 0 {
			last = s.Points[n-1].Y
		}
		lines = append(lines,
			fmt.Sprintf("%8.0f lx  (%d samples)", last, st.Samples),
			c.colorize(s.Color, sparkline(s.Points, st.Bounds.MaxY, width)),
		)
	}
	return lines
}

// colorize maps a series colour onto the 6x6x6 xterm cube.
func (c *Console) colorize(hex string, s string) string {
	col, err := colorful.Hex(hex)
	if err != nil {
		return s
	}
	r, g, b := cube(col.R), cube(col.G), cube(col.B)
	return c.au.Index(16+36*r+6*g+b, s).String()
}

func cube(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 5))
}

// centeredBar draws v on a bar whose middle is zero and whose ends are
// -limit and +limit.
func centeredBar(v, limit float64, width int) string {
	half := width / 2
	n := int(math.Round(math.Min(math.Abs(v), limit) / limit * float64(half)))
	if v < 0 {
		return strings.Repeat(" ", half-n) + strings.Repeat("█", n) + "|" + strings.Repeat(" ", half)
	}
	return strings.Repeat(" ", half) + "|" + strings.Repeat("█", n) + strings.Repeat(" ", half-n)
}

// sparkline draws the most recent points, one rune each.
func sparkline(points []chart.Point, limit float64, width int) string {
	if len(points) > width {
		points = points[len(points)-width:]
	}
	var sb strings.Builder
	for _, p := range points {
		level := int(math.Max(0, math.Min(p.Y, limit)) / limit * float64(len(sparkRunes)-1))
		sb.WriteRune(sparkRunes[level])
	}
	return sb.String()
}

// fitsTerminal reports whether the four panes have room.
func fitsTerminal(cols, rows int) bool {
	return cols >= minConsoleCols && rows >= minConsoleRows
}

func (c *Console) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	if !fitsTerminal(maxX, maxY) {
		return c.layoutTooSmall(g, maxX, maxY)
	}
	if err := g.DeleteView(ViewSmall); err != nil && !errors.Is(err, gocui.ErrUnknownView) {
		return err
	}

	if v, err := g.SetView(ViewMenu, 0, 0, maxX-1, 2, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Sensors]"
		v.Frame = true
	}
	if v, err := g.SetView(ViewChart, 0, 3, maxX-1, maxY-10, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Chart]"
		v.Wrap = false
		v.Frame = true
	}
	if v, err := g.SetView(ViewLogs, 0, maxY-9, maxX-1, maxY-4, gocui.TOP); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Logs]"
		v.Wrap = false
		v.Frame = true
	}
	if v, err := g.SetView(ViewStatus, 0, maxY-3, maxX-1, maxY-1, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Status]"
		v.Frame = true
	}
	return nil
}

// layoutTooSmall replaces the panes with a single message until the
// terminal grows again.
func (c *Console) layoutTooSmall(g *gocui.Gui, maxX, maxY int) error {
	for _, name := range []string{ViewMenu, ViewChart, ViewLogs, ViewStatus} {
		if err := g.DeleteView(name); err != nil && !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
	}
	v, err := g.SetView(ViewSmall, 0, 0, max(maxX-1, 1), max(maxY-1, 1), 0)
	if err != nil && !errors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	v.Frame = false
	v.Clear()
	fmt.Fprintf(v, "terminal too small, need %dx%d", minConsoleCols, minConsoleRows)
	return nil
}

func (c *Console) redraw(g *gocui.Gui) error {
	if _, err := g.View(ViewSmall); err == nil {
		return nil
	}
	if err := c.fill(g, ViewMenu, func(int, int) string {
		return c.MenuLine(c.sel.Menu())
	}); err != nil {
		return err
	}
	if err := c.fill(g, ViewChart, func(width, _ int) string {
		return strings.Join(c.ChartLines(c.sel.Snapshot(), width), "\n")
	}); err != nil {
		return err
	}
	if err := c.fill(g, ViewLogs, func(_, rows int) string {
		return strings.Join(c.logs.Tail(rows), "\n")
	}); err != nil {
		return err
	}
	return c.fill(g, ViewStatus, func(int, int) string {
		return c.Status()
	})
}

// fill replaces the content of a view. Views not laid out yet are skipped.
func (c *Console) fill(g *gocui.Gui, name string, text func(width, height int) string) error {
	v, err := g.View(name)
	if errors.Is(err, gocui.ErrUnknownView) {
		return nil
	}
	if err != nil {
		return err
	}
	width, height := v.Size()
	v.Clear()
	fmt.Fprint(v, text(width, height))
	return nil
}

func (c *Console) bindKeys(g *gocui.Gui) error {
	for i, kind := range sensors.Kinds {
		kind := kind
		if err := g.SetKeybinding("", rune('1'+i), gocui.ModNone, func(*gocui.Gui, *gocui.View) error {
			_ = c.Select(kind)
			return nil
		}); err != nil {
			return err
		}
	}
	for _, key := range []interface{}{'q', gocui.KeyCtrlC} {
		if err := g.SetKeybinding("", key, gocui.ModNone, quit); err != nil {
			return err
		}
	}
	return nil
}

func quit(*gocui.Gui, *gocui.View) error {
	return gocui.ErrQuit
}

// Run drives the terminal UI until the user quits or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	g, err := gocui.NewGui(gocui.Output256, true)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	defer g.Close()

	g.SetManagerFunc(c.layout)
	if err := c.bindKeys(g); err != nil {
		return fmt.Errorf("console: keybindings: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(consoleRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				g.Update(stopGUI)
				return
			case <-ticker.C:
				g.Update(c.redraw)
			}
		}
	}()

	if err := g.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

func stopGUI(*gocui.Gui) error {
	return gocui.ErrQuit
}

// RunConsole shows the chart in the terminal. Keys 1, 2 and 3 pick the
// sensor, q quits.
func RunConsole(ctx context.Context) error {
	cfg := config.Get()

	logs := newLogBuffer(logLines)
	if err := logging.InitWriter(cfg.LogLevel, logs); err != nil {
		return err
	}
	log := logging.Named("console")

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		if cfg.SensorSource == config.SourceMQTT {
			return err
		}
		log.Warnw("running without MQTT, mode changes are not shared", "error", err)
		client = nil
	} else {
		defer client.Disconnect(250)
	}

	src, release, err := openSource(cfg, client)
	if err != nil {
		return err
	}
	defer release()

	sel := selector.New(src, cfg.SampleRate)
	defer sel.Close()

	var relay *modeRelay
	if client != nil {
		relay = newModeRelay(client, cfg.TopicMode)
		defer relay.Close()
	}
	console := NewConsole(sel, relay, logs, true)
	if mode := selectInitial(sel, src, cfg.InitialMode); mode.Valid() {
		console.setStatus(fmt.Sprintf("%s selected", mode.Label()))
	}

	return console.Run(ctx)
}
