package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/craftdeck/craftdeck/internal/console"
	"github.com/craftdeck/craftdeck/internal/history"
	"github.com/craftdeck/craftdeck/internal/metrics"
)

// Broadcaster fans supervisor events out to connected dashboard viewers.
// Implementations must not call back into the Supervisor synchronously.
type Broadcaster interface {
	BroadcastStatus(st Status)
	BroadcastConsole(line string)
	BroadcastPlayers(players []string)
}

// nopBroadcaster is used when no hub is attached (embedding, tests).
type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastStatus(Status)    {}
func (nopBroadcaster) BroadcastConsole(string)   {}
func (nopBroadcaster) BroadcastPlayers([]string) {}

// Config describes how the wrapped server process is launched and observed.
type Config struct {
	Java         string        `mapstructure:"java"`
	JavaArgs     []string      `mapstructure:"java_args"`
	Jar          string        `mapstructure:"jar"`
	WorkDir      string        `mapstructure:"workdir"`
	Properties   string        `mapstructure:"properties"`
	StopCommand  string        `mapstructure:"stop_command"`
	ReadyMarkers []string      `mapstructure:"ready_markers"`
	RestartDelay time.Duration `mapstructure:"restart_delay"`
	ConsoleLines int           `mapstructure:"console_lines"`
}

// DefaultConfig mirrors a stock Java game server setup.
func DefaultConfig() Config {
	return Config{
		Java:         "java",
		JavaArgs:     []string{"-Xms1G", "-Xmx2G", "-XX:+UseG1GC"},
		Jar:          "server.jar",
		WorkDir:      ".",
		Properties:   "server.properties",
		StopCommand:  "stop",
		ReadyMarkers: []string{"Done", "For help"},
		RestartDelay: 2 * time.Second,
		ConsoleLines: console.DefaultCapacity,
	}
}

var (
	joinRe  = regexp.MustCompile(`(\w+) joined the game`)
	leaveRe = regexp.MustCompile(`(\w+) left the game`)
)

// Supervisor owns the single wrapped server process: it launches and stops
// it, captures its console, projects its status, and forwards commands to
// its stdin. All operations report failures as broadcast console notices
// rather than errors, so the dashboard never sees a failed request.
type Supervisor struct {
	cfg    Config
	bc     Broadcaster
	logger *slog.Logger

	mu             sync.Mutex
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	status         Status
	restartPending bool
	restartTimer   *time.Timer
	players        []string

	buffer *console.Buffer
	mirror io.WriteCloser
	sinks  []history.Sink
}

func New(cfg Config, bc Broadcaster, logger *slog.Logger) *Supervisor {
	if bc == nil {
		bc = nopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StopCommand == "" {
		cfg.StopCommand = "stop"
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	return &Supervisor{
		cfg:    cfg,
		bc:     bc,
		logger: logger,
		status: StatusStopped,
		buffer: console.NewBuffer(cfg.ConsoleLines),
	}
}

// SetHistorySinks configures lifecycle event destinations. Best effort:
// sink failures are logged, never surfaced.
func (s *Supervisor) SetHistorySinks(sinks ...history.Sink) {
	s.mu.Lock()
	s.sinks = append([]history.Sink(nil), sinks...)
	s.mu.Unlock()
}

// SetOutputMirror writes every captured console line to w (rotating file).
func (s *Supervisor) SetOutputMirror(w io.WriteCloser) {
	s.mu.Lock()
	s.mirror = w
	s.mu.Unlock()
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return 0
}

// Console returns the buffered history in arrival order.
func (s *Supervisor) Console() []string { return s.buffer.Snapshot() }

func (s *Supervisor) Players() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.players...)
}

// Start launches the wrapped server. A second start while a handle exists
// emits an informational notice and changes nothing.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.cmd != nil {
		s.noticeLocked("[Manager] Server is already running")
		s.mu.Unlock()
		return
	}
	s.restartTimer = nil
	s.setStatusLocked(StatusStarting)
	s.noticeLocked("[Manager] Starting server...")

	args := append(append([]string(nil), s.cfg.JavaArgs...), "-jar", s.cfg.Jar, "nogui")
	cmd := exec.Command(s.cfg.Java, args...)
	cmd.Dir = s.cfg.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.noticeLocked("[ERROR] Failed to open server stdin: " + err.Error())
		s.setStatusLocked(StatusStopped)
		s.mu.Unlock()
		return
	}

	if err := cmd.Start(); err != nil {
		s.noticeLocked("[ERROR] Failed to start server: " + err.Error())
		s.setStatusLocked(StatusStopped)
		s.mu.Unlock()
		_ = stdin.Close()
		_ = pw.Close()
		return
	}

	s.cmd = cmd
	s.stdin = stdin
	s.players = nil
	pid := cmd.Process.Pid
	s.mu.Unlock()

	s.logger.Info("server started", "pid", pid)
	metrics.IncStart()
	metrics.SetOnlinePlayers(0)
	s.record(history.Record{Type: history.EventStart, PID: int64(pid), Note: "launched"})

	readerDone := make(chan struct{})
	go s.readOutput(pr, readerDone)
	go s.waitExit(cmd, pw, readerDone)
}

// Stop writes the stop command to the server's stdin. Termination is
// cooperative: the wrapped process is expected to exit on its own, and the
// exit observer completes the transition to stopped.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		if s.restartTimer != nil {
			s.restartTimer.Stop()
			s.restartTimer = nil
			s.noticeLocked("[Manager] Pending restart cancelled")
			return
		}
		s.noticeLocked("[Manager] Server is not running")
		return
	}
	s.restartPending = false
	s.setStatusLocked(StatusStopping)
	s.noticeLocked("[Manager] Stopping server...")
	s.writeStdinLocked(s.cfg.StopCommand)
}

// Restart stops the server and relaunches it once the exit event is
// observed. With no live handle it behaves as Start. A restart while one is
// already pending is a no-op with a notice.
func (s *Supervisor) Restart() {
	s.mu.Lock()
	if s.cmd == nil {
		s.mu.Unlock()
		s.Start()
		return
	}
	if s.status == StatusRestarting {
		s.noticeLocked("[Manager] Restart already in progress")
		s.mu.Unlock()
		return
	}
	s.restartPending = true
	s.setStatusLocked(StatusRestarting)
	s.noticeLocked("[Manager] Restarting server...")
	s.writeStdinLocked(s.cfg.StopCommand)
	s.mu.Unlock()
	metrics.IncRestart()
}

// SendCommand echoes the command to all viewers and forwards it to the
// server's stdin. No validation is applied.
func (s *Supervisor) SendCommand(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		s.noticeLocked("[Manager] Server is not running")
		return
	}
	s.appendLocked("> " + command)
	s.writeStdinLocked(command)
	metrics.IncCommand()
}

// Announce publishes a manager notice to the console buffer and all
// viewers. Used for daemon-level messages like the startup banner.
func (s *Supervisor) Announce(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noticeLocked("[Manager] " + message)
}

// Close releases the output mirror. It does not stop the wrapped server.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirror != nil {
		err := s.mirror.Close()
		s.mirror = nil
		return err
	}
	return nil
}

func (s *Supervisor) readOutput(r io.Reader, done chan<- struct{}) {
	defer close(done)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		s.handleLine(line)
	}
}

func (s *Supervisor) handleLine(line string) {
	s.mu.Lock()
	s.appendLocked(line)
	if s.status == StatusStarting && s.isReadyLineLocked(line) {
		s.setStatusLocked(StatusRunning)
		s.noticeLocked("[Manager] Server is ready")
		pid := 0
		if s.cmd != nil && s.cmd.Process != nil {
			pid = s.cmd.Process.Pid
		}
		s.mu.Unlock()
		s.logger.Info("server ready", "pid", pid)
		s.record(history.Record{Type: history.EventReady, PID: int64(pid), Note: "ready marker observed"})
		return
	}
	if m := joinRe.FindStringSubmatch(line); m != nil {
		s.players = append(s.players, m[1])
		players := append([]string(nil), s.players...)
		s.mu.Unlock()
		metrics.SetOnlinePlayers(len(players))
		s.bc.BroadcastPlayers(players)
		return
	}
	if m := leaveRe.FindStringSubmatch(line); m != nil {
		for i, p := range s.players {
			if p == m[1] {
				s.players = append(s.players[:i], s.players[i+1:]...)
				break
			}
		}
		players := append([]string(nil), s.players...)
		s.mu.Unlock()
		metrics.SetOnlinePlayers(len(players))
		s.bc.BroadcastPlayers(players)
		return
	}
	s.mu.Unlock()
}

// isReadyLineLocked applies the readiness heuristic: a single line carrying
// every configured marker. Fragile by nature; the markers are injected via
// config so a changed log wording is an operator fix, not a rebuild.
func (s *Supervisor) isReadyLineLocked(line string) bool {
	if len(s.cfg.ReadyMarkers) == 0 {
		return false
	}
	for _, m := range s.cfg.ReadyMarkers {
		if !strings.Contains(line, m) {
			return false
		}
	}
	return true
}

func (s *Supervisor) waitExit(cmd *exec.Cmd, pw *io.PipeWriter, readerDone <-chan struct{}) {
	err := cmd.Wait()
	_ = pw.Close()
	// Drain the scanner first so the exit notice lands after the last
	// server line, preserving viewer-observed order.
	<-readerDone

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}

	s.mu.Lock()
	s.cmd = nil
	s.stdin = nil
	s.players = nil
	s.noticeLocked(fmt.Sprintf("[Manager] Server stopped (exit code %d)", exitCode))
	s.setStatusLocked(StatusStopped)
	pending := s.restartPending
	s.restartPending = false
	if pending {
		// Armed before the lock drops so a concurrent Stop can cancel it.
		s.restartTimer = time.AfterFunc(s.cfg.RestartDelay, s.Start)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("server exited", "pid", pid, "exit_code", exitCode, "error", err)
	} else {
		s.logger.Info("server exited", "pid", pid, "exit_code", exitCode)
	}
	metrics.IncStop()
	metrics.SetOnlinePlayers(0)
	s.bc.BroadcastPlayers(nil)
	s.record(history.Record{Type: history.EventStop, PID: int64(pid), ExitCode: int64(exitCode), Note: "exited"})
}

func (s *Supervisor) writeStdinLocked(command string) {
	if s.stdin == nil {
		return
	}
	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		s.noticeLocked("[ERROR] Failed to write to server stdin: " + err.Error())
	}
}

// appendLocked records a console line and fans it out. Callers hold s.mu.
func (s *Supervisor) appendLocked(line string) {
	s.buffer.Append(line)
	if s.mirror != nil {
		_, _ = io.WriteString(s.mirror, line+"\n")
	}
	metrics.IncConsoleLine()
	s.bc.BroadcastConsole(line)
}

func (s *Supervisor) noticeLocked(line string) { s.appendLocked(line) }

func (s *Supervisor) setStatusLocked(st Status) {
	s.status = st
	metrics.SetState(string(st), AllStatuses())
	s.bc.BroadcastStatus(st)
}

func (s *Supervisor) record(rec history.Record) {
	rec.OccurredAt = time.Now().UTC()
	s.mu.Lock()
	sinks := append([]history.Sink(nil), s.sinks...)
	s.mu.Unlock()
	for _, sink := range sinks {
		if err := sink.Send(context.Background(), rec); err != nil {
			s.logger.Warn("history sink send failed", "type", rec.Type, "error", err)
		}
	}
}
