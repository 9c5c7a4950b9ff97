// Command agent-console is the terminal station for a human call-center
// agent. On startup it registers the agent with the backend; the operator
// then checks for waiting calls and answers them, which joins the call's
// LiveKit room as an audio-only participant.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arogya/agent-console/pkg/console"
)

func main() {
	cfg, err := console.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	backendURL := flag.String("backend", cfg.BackendURL, "call-center backend base URL")
	livekitURL := flag.String("livekit-url", cfg.LiveKitURL, "LiveKit server URL")
	username := flag.String("username", cfg.Username, "agent username")
	fullName := flag.String("full-name", cfg.FullName, "agent full name")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "agent-console.log", "log file path (the TUI owns the terminal)")
	flag.Parse()

	cfg.BackendURL = *backendURL
	cfg.LiveKitURL = *livekitURL
	cfg.Username = *username
	cfg.FullName = *fullName
	cfg.LogLevel = *logLevel

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	zl, err := newFileLogger(*logFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()

	if err := runUI(cfg, zl); err != nil {
		fmt.Fprintf(os.Stderr, "agent-console failed: %v\n", err)
		os.Exit(1)
	}
}

// newFileLogger builds a zap logger writing to path. The terminal is owned
// by tview, so nothing may log to stdout or stderr while the UI runs.
func newFileLogger(path, level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), lvl)
	return zap.New(core), nil
}

// uiLogger tees console logging into the events pane in addition to zap.
type uiLogger struct {
	base   console.Logger
	append func(line string)
}

func (l *uiLogger) Debug(msg string, fields ...interface{}) { l.base.Debug(msg, fields...) }

func (l *uiLogger) Info(msg string, fields ...interface{}) {
	l.base.Info(msg, fields...)
	l.append(formatEvent(msg, fields))
}

func (l *uiLogger) Warn(msg string, fields ...interface{}) {
	l.base.Warn(msg, fields...)
	l.append("[yellow]" + formatEvent(msg, fields) + "[-]")
}

func (l *uiLogger) Error(msg string, fields ...interface{}) {
	l.base.Error(msg, fields...)
	l.append("[red]" + formatEvent(msg, fields) + "[-]")
}

func formatEvent(msg string, fields []interface{}) string {
	var sb strings.Builder
	sb.WriteString(time.Now().Format("15:04:05"))
	sb.WriteString("  ")
	sb.WriteString(msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", fields[i], fields[i+1])
	}
	return sb.String()
}

func runUI(cfg *console.Config, zl *zap.Logger) error {
	app := tview.NewApplication()

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetTitle("Agent").SetBorder(true)

	eventsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	eventsView.SetTitle("Events").SetBorder(true)

	hintView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	hintView.SetBorder(true).SetTitle("Actions")

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(statusView, 5, 0, false).
		AddItem(eventsView, 0, 1, false).
		AddItem(hintView, 3, 0, false)

	appendEvent := func(line string) {
		app.QueueUpdateDraw(func() {
			fmt.Fprintf(eventsView, "%s\n", line)
			eventsView.ScrollToEnd()
		})
	}

	logger := &uiLogger{base: console.NewZapLogger(zl), append: appendEvent}

	backend := console.NewBackendClient(cfg.BackendURL, console.BackendClientOptions{Logger: logger})
	connector := console.NewLiveKitConnector(logger)
	controller := console.NewSessionController(backend, connector, console.ControllerOptions{
		Username:   cfg.Username,
		FullName:   cfg.FullName,
		LiveKitURL: cfg.LiveKitURL,
		Logger:     logger,
	})
	defer controller.Close()

	renderStatus := func(s console.StateSnapshot) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "User: %s (%s)\n", cfg.Username, cfg.FullName)
		fmt.Fprintf(&sb, "Agent ID: %s   Status: %s\n", orDash(s.AgentID), orDash(s.AgentStatus))
		fmt.Fprintf(&sb, "State: %s", s.State)
		if s.Room != "" {
			fmt.Fprintf(&sb, "   Room: %s", s.Room)
		}
		statusView.SetText(sb.String())
	}

	renderHint := func(s console.StateSnapshot) {
		switch s.State {
		case console.StateRegistered:
			hintView.SetText("c — check for call   |   F10 quit")
		case console.StateCallAssigned:
			hintView.SetText(fmt.Sprintf("a — answer call (join %s)   |   F10 quit", s.Room))
		case console.StateSessionActive:
			hintView.SetText("in call — F10 quits and hangs up")
		default:
			hintView.SetText("registering...   |   F10 quit")
		}
	}

	controller.SetListener(func(s console.StateSnapshot) {
		app.QueueUpdateDraw(func() {
			renderStatus(s)
			renderHint(s)
		})
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10, tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'c':
			go func() {
				if _, err := controller.PollNextCall(context.Background()); err != nil {
					appendEvent("[red]check for call failed: " + err.Error() + "[-]")
				}
			}()
			return nil
		case 'a':
			go func() {
				if err := controller.AnswerCall(context.Background()); err != nil {
					appendEvent("[red]answer failed: " + err.Error() + "[-]")
				}
			}()
			return nil
		case 'q':
			app.Stop()
			return nil
		}
		return event
	})

	// Register once on startup. Failures are logged; the state simply stays
	// unregistered and no retry is scheduled.
	go func() {
		_ = controller.EnsureRegistered(context.Background())
	}()

	renderStatus(controller.Snapshot())
	renderHint(controller.Snapshot())

	return app.SetRoot(root, true).Run()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
