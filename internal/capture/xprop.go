package capture

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"
)

// CommandRunner runs one external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ProcessNamer resolves a pid to its executable name.
type ProcessNamer func(pid int32) (string, error)

// ExecRunner runs commands through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}

// ProcessName resolves a pid through gopsutil.
func ProcessName(pid int32) (string, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return "", fmt.Errorf("find process %d: %w", pid, err)
	}
	name, err := proc.Name()
	if err != nil {
		return "", fmt.Errorf("process %d name: %w", pid, err)
	}
	return name, nil
}

// XpropSnapshotter reads the focused X11 window with xprop.
type XpropSnapshotter struct {
	run         CommandRunner
	processName ProcessNamer
}

// NewXpropSnapshotter constructs an X11 snapshotter; nil arguments select the real implementations.
func NewXpropSnapshotter(run CommandRunner, processName ProcessNamer) *XpropSnapshotter {
	if run == nil {
		run = ExecRunner
	}
	if processName == nil {
		processName = ProcessName
	}
	return &XpropSnapshotter{run: run, processName: processName}
}

// ActiveWindow returns the focused window's title, class and executable.
func (s *XpropSnapshotter) ActiveWindow(ctx context.Context) (Window, error) {
	rootOut, err := s.run(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return Window{}, err
	}
	windowID, err := parseActiveWindowID(string(rootOut))
	if err != nil {
		return Window{}, err
	}

	propsOut, err := s.run(ctx, "xprop", "-id", windowID, "_NET_WM_NAME", "WM_CLASS", "_NET_WM_PID")
	if err != nil {
		return Window{}, err
	}
	props := parseXpropLines(string(propsOut))

	win := Window{
		Title:     firstQuoted(props["_NET_WM_NAME"]),
		ClassName: firstQuoted(props["WM_CLASS"]),
	}
	pidRaw := strings.TrimSpace(props["_NET_WM_PID"])
	if pidRaw == "" {
		return win, nil
	}
	pid, err := strconv.ParseInt(pidRaw, 10, 32)
	if err != nil {
		return Window{}, fmt.Errorf("parse _NET_WM_PID %q: %w", pidRaw, err)
	}
	name, err := s.processName(int32(pid))
	if err != nil {
		return Window{}, err
	}
	win.Executable = name
	return win, nil
}

// parseActiveWindowID extracts the id from "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007".
func parseActiveWindowID(out string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return "", ErrNoActiveWindow
	}
	id := strings.TrimSuffix(fields[len(fields)-1], ",")
	if !strings.HasPrefix(id, "0x") {
		return "", fmt.Errorf("unexpected xprop output %q", strings.TrimSpace(out))
	}
	if n, err := strconv.ParseUint(strings.TrimPrefix(id, "0x"), 16, 64); err != nil || n == 0 {
		return "", ErrNoActiveWindow
	}
	return id, nil
}

// parseXpropLines maps property names to their raw values.
func parseXpropLines(out string) map[string]string {
	props := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		name, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		if idx := strings.IndexByte(name, '('); idx >= 0 {
			name = name[:idx]
		}
		props[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return props
}

// firstQuoted returns the first double-quoted string in value, unescaping backslashes.
func firstQuoted(value string) string {
	start := strings.IndexByte(value, '"')
	if start < 0 {
		return ""
	}
	var b strings.Builder
	escaped := false
	for _, r := range value[start+1:] {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return b.String()
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// XprintidleSource reads X11 idle time with xprintidle.
type XprintidleSource struct {
	run CommandRunner
}

// NewXprintidleSource constructs an idle source; a nil runner selects os/exec.
func NewXprintidleSource(run CommandRunner) *XprintidleSource {
	if run == nil {
		run = ExecRunner
	}
	return &XprintidleSource{run: run}
}

// IdleTime returns the X11 idle time.
func (s *XprintidleSource) IdleTime(ctx context.Context) (time.Duration, error) {
	out, err := s.run(ctx, "xprintidle")
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(out))
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse xprintidle output %q: %w", raw, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
