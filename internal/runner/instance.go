package runner

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"procpilot/internal/domain"
)

const (
	cpuWindowSize = 5
	stopGrace     = 5 * time.Second
	reapTimeout   = time.Second
)

// Callbacks connects an Instance back to its owner. Handlers must not
// call back into the owner's locked operations; they are invoked from
// Start/Stop and from the log reader's goroutine.
type Callbacks struct {
	OnStatus func(status string)
	OnLog    LogFunc
	OnPort   func(port int)
}

// Instance supervises exactly one child process from spawn to confirmed
// termination. Instances are transient: the registry creates one on start
// and discards it after stop.
type Instance struct {
	cfg                domain.ServerConfig
	defaultInterpreter string
	cb                 Callbacks

	mu        sync.Mutex
	cmd       *exec.Cmd
	proc      *process.Process
	reader    *LogReader
	cpuWindow []float64
	port      int
	exitCh    chan struct{}

	// Serializes Stop against itself; Stop blocks for seconds and must be
	// idempotent.
	stopMu sync.Mutex
}

func NewInstance(cfg domain.ServerConfig, defaultInterpreter string, cb Callbacks) *Instance {
	return &Instance{
		cfg:                cfg,
		defaultInterpreter: defaultInterpreter,
		cb:                 cb,
	}
}

func (i *Instance) Name() string {
	return i.cfg.Name
}

// Start spawns the child, attaches the log reader and the resource
// sampling handle, and reports the running status. On any failure no
// partial state survives.
func (i *Instance) Start() error {
	i.mu.Lock()
	if i.cmd != nil {
		i.mu.Unlock()
		return errors.New("already running")
	}
	i.mu.Unlock()

	if _, err := os.Stat(i.cfg.Path); err != nil {
		return fmt.Errorf("server path not found: %s", i.cfg.Path)
	}

	argv, err := BuildCommand(i.cfg, i.defaultInterpreter)
	if err != nil {
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workingDir(i.cfg.Path)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	prepareCommand(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	proc, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		// Died before we could bind the sampling handle.
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("process exited immediately: %w", err)
	}
	// Prime the CPU counter; the first delta read after spawn is a warm-up
	// and may legitimately report zero.
	_, _ = proc.Percent(0)

	reader := NewLogReader(stdout, stderr, i.handleLog)
	exitCh := make(chan struct{})

	i.mu.Lock()
	i.cmd = cmd
	i.proc = proc
	i.reader = reader
	i.exitCh = exitCh
	i.cpuWindow = nil
	i.port = 0
	i.mu.Unlock()

	go reap(cmd, reader, exitCh)

	if i.cb.OnStatus != nil {
		i.cb.OnStatus(domain.StatusRunning)
	}

	i.DetectPort()

	return nil
}

// reap waits for both output streams to reach EOF before calling Wait, so
// trailing partial lines are flushed before the pipes are torn down.
func reap(cmd *exec.Cmd, reader *LogReader, exitCh chan struct{}) {
	<-reader.StreamsDone()
	_ = cmd.Wait()
	close(exitCh)
}

func (i *Instance) handleLog(line string, isError bool) {
	if i.cb.OnLog != nil {
		i.cb.OnLog(line, isError)
	}
	if i.Port() == 0 {
		if port := PortFromLogLine(line); port > 0 {
			i.setPort(port)
		}
	}
}

// Stop tears the process down: log reader first, then a graceful
// termination of the whole process tree, a forced kill of stragglers, and
// a best-effort reap of the original handle. It always reaches the
// stopped state; races with a process that already died are expected and
// swallowed.
func (i *Instance) Stop() {
	i.stopMu.Lock()
	defer i.stopMu.Unlock()

	i.mu.Lock()
	cmd := i.cmd
	reader := i.reader
	exitCh := i.exitCh
	i.mu.Unlock()

	if cmd == nil {
		return
	}

	// No log events may race with the teardown.
	reader.Stop()

	procs := processTree(int32(cmd.Process.Pid))
	for _, p := range procs {
		_ = p.Terminate()
	}

	for _, p := range waitForExit(procs, stopGrace) {
		log.Printf("runner: force killing pid %d for %s", p.Pid, i.cfg.Name)
		_ = p.Kill()
	}

	select {
	case <-exitCh:
	case <-time.After(reapTimeout):
		_ = cmd.Process.Kill()
		select {
		case <-exitCh:
		case <-time.After(reapTimeout):
			log.Printf("runner: %s did not reap cleanly", i.cfg.Name)
		}
	}

	i.mu.Lock()
	i.cmd = nil
	i.proc = nil
	i.reader = nil
	i.cpuWindow = nil
	i.port = 0
	i.mu.Unlock()

	if i.cb.OnStatus != nil {
		i.cb.OnStatus(domain.StatusStopped)
	}
}

// Exited reports whether the child is gone while the instance is still
// attached. Used by the registry to reconcile processes that died outside
// its control.
func (i *Instance) Exited() bool {
	i.mu.Lock()
	proc := i.proc
	exitCh := i.exitCh
	i.mu.Unlock()

	if proc == nil {
		return true
	}
	select {
	case <-exitCh:
		return true
	default:
	}
	running, err := proc.IsRunning()
	return err != nil || !running
}

// Sample returns the smoothed CPU percentage and resident memory in MB.
// A process that vanished triggers a self-healing Stop and reports !ok.
func (i *Instance) Sample() (cpu, ram float64, ok bool) {
	i.mu.Lock()
	proc := i.proc
	i.mu.Unlock()

	if proc == nil {
		return 0, 0, false
	}
	if running, err := proc.IsRunning(); err != nil || !running {
		i.Stop()
		return 0, 0, false
	}

	raw, err := proc.Percent(0)
	if err != nil {
		i.Stop()
		return 0, 0, false
	}
	mem, err := proc.MemoryInfo()
	if err != nil || mem == nil {
		i.Stop()
		return 0, 0, false
	}

	i.mu.Lock()
	cpu = i.smooth(raw)
	i.mu.Unlock()

	return cpu, float64(mem.RSS) / (1024 * 1024), true
}

// smooth pushes a raw CPU reading into the fixed rolling window and
// returns the window mean. Caller holds i.mu.
func (i *Instance) smooth(raw float64) float64 {
	i.cpuWindow = append(i.cpuWindow, raw)
	if len(i.cpuWindow) > cpuWindowSize {
		i.cpuWindow = i.cpuWindow[len(i.cpuWindow)-cpuWindowSize:]
	}
	var sum float64
	for _, v := range i.cpuWindow {
		sum += v
	}
	return sum / float64(len(i.cpuWindow))
}

// DetectPort tries the configured port first, then the listening sockets
// of the process tree. Log-line detection happens as lines arrive. Best
// effort and never an error.
func (i *Instance) DetectPort() {
	if i.cfg.Port > 0 {
		i.setPort(i.cfg.Port)
		return
	}

	i.mu.Lock()
	proc := i.proc
	i.mu.Unlock()

	if port := listeningPort(proc); port > 0 {
		i.setPort(port)
	}
}

// Port returns the latched detected port, 0 when none.
func (i *Instance) Port() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.port
}

// setPort latches the first detected port; later candidates are ignored.
func (i *Instance) setPort(port int) {
	i.mu.Lock()
	if i.port != 0 {
		i.mu.Unlock()
		return
	}
	i.port = port
	i.mu.Unlock()

	if i.cb.OnPort != nil {
		i.cb.OnPort(port)
	}
}

// processTree collects the tracked process and every descendant, children
// before the parent. A pid that is already gone yields nil.
func processTree(pid int32) []*process.Process {
	parent, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	return append(descendants(parent), parent)
}

// waitForExit polls until every process exited or the timeout elapses,
// returning the survivors.
func waitForExit(procs []*process.Process, timeout time.Duration) []*process.Process {
	deadline := time.Now().Add(timeout)
	alive := procs
	for len(alive) > 0 {
		var still []*process.Process
		for _, p := range alive {
			if running, err := p.IsRunning(); err == nil && running {
				still = append(still, p)
			}
		}
		alive = still
		if len(alive) == 0 || !time.Now().Before(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	return alive
}
