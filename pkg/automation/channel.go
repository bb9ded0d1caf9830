package automation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	applog "github.com/Sriram-PR/price-reconciler/pkg/log"
	"github.com/Sriram-PR/price-reconciler/pkg/queue"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// WorkerSubcommand is the hidden CLI command that runs Serve in the child
const WorkerSubcommand = "automation-worker"

// Options configures the worker process
type Options struct {
	Command      []string // argv of the worker; defaults to "<self> automation-worker"
	Env          []string // Appended to the parent environment
	Domain       string
	StartupGrace time.Duration
	JoinGrace    time.Duration
	KillGrace    time.Duration
}

// ProcessChannel owns the worker process and the two unbounded queues feeding
// and draining it. Submit and Next may be called from different goroutines.
type ProcessChannel struct {
	opts    Options
	log     *logrus.Entry
	tasks   *queue.FIFO[Task]
	results *queue.FIFO[Result]

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	exited  chan struct{} // Closed once the process has been reaped
	exitErr error

	stopOnce sync.Once
	stopErr  error
}

// NewProcessChannel creates a channel; nothing runs until Start
func NewProcessChannel(opts Options, log *logrus.Entry) *ProcessChannel {
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = 500 * time.Millisecond
	}
	if opts.JoinGrace <= 0 {
		opts.JoinGrace = 15 * time.Second
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = 5 * time.Second
	}
	return &ProcessChannel{
		opts:    opts,
		log:     log,
		tasks:   queue.NewFIFO[Task]("automation-tasks", log),
		results: queue.NewFIFO[Result]("automation-results", log),
		exited:  make(chan struct{}),
	}
}

// DefaultCommand re-executes the running binary as the worker
func DefaultCommand(configPath string) ([]string, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: locate executable: %w", utils.ErrWorkerNotStarted, err)
	}
	argv := []string{self, WorkerSubcommand}
	if configPath != "" {
		argv = append(argv, "--config", configPath)
	}
	return argv, nil
}

// Start launches the worker process and its I/O goroutines
func (c *ProcessChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if len(c.opts.Command) == 0 {
		return fmt.Errorf("%w: no worker command", utils.ErrWorkerNotStarted)
	}

	// Not CommandContext: shutdown goes through Stop's sentinel/grace sequence
	cmd := exec.Command(c.opts.Command[0], c.opts.Command[1:]...)
	cmd.Env = append(os.Environ(), c.opts.Env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %w", utils.ErrWorkerNotStarted, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %w", utils.ErrWorkerNotStarted, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: stderr pipe: %w", utils.ErrWorkerNotStarted, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", utils.ErrWorkerNotStarted, err)
	}
	c.cmd = cmd
	c.started = true
	c.log.WithField("pid", cmd.Process.Pid).Info("Automation worker started")

	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		applog.ForwardWorkerLog(stderr, c.log.WithField("source", WorkerSubcommand))
	}()
	go func() {
		defer pipes.Done()
		c.readLoop(stdout)
	}()
	go c.writeLoop(stdin)
	go func() {
		// Wait must not run before the pipes are drained
		pipes.Wait()
		err := cmd.Wait()
		c.mu.Lock()
		c.exitErr = err
		c.mu.Unlock()
		c.tasks.Close()
		close(c.exited)
		if err != nil {
			c.log.Warnf("Automation worker exited: %v", err)
		} else {
			c.log.Info("Automation worker exited")
		}
	}()
	return nil
}

// writeLoop drains the task queue into the child's stdin
func (c *ProcessChannel) writeLoop(stdin io.WriteCloser) {
	defer stdin.Close()
	enc := json.NewEncoder(stdin)
	broken := false
	for {
		task, ok := c.tasks.Pop()
		if !ok {
			return
		}
		if broken {
			continue
		}
		if err := enc.Encode(task); err != nil {
			c.log.Errorf("Cannot write to automation worker, dropping remaining tasks: %v", err)
			broken = true
		}
	}
}

// readLoop parses result lines into the result queue and closes it at EOF
func (c *ProcessChannel) readLoop(stdout io.Reader) {
	defer c.results.Close()
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var res Result
		if err := json.Unmarshal(line, &res); err != nil || !res.StatusValue().IsValid() {
			c.log.Debugf("Ignoring non-result line from worker: %s", truncate(string(line), 200))
			continue
		}
		c.results.Push(res)
	}
	if err := scanner.Err(); err != nil {
		c.log.Warnf("Result stream error: %v", err)
	}
}

// Alive waits the startup grace period then reports whether the worker is still running
func (c *ProcessChannel) Alive(ctx context.Context) bool {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return false
	}
	timer := time.NewTimer(c.opts.StartupGrace)
	defer timer.Stop()
	select {
	case <-c.exited:
		return false
	case <-ctx.Done():
		return !c.hasExited()
	case <-timer.C:
		return !c.hasExited()
	}
}

func (c *ProcessChannel) hasExited() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

// Submit queues a task for the worker. It never blocks
func (c *ProcessChannel) Submit(task Task) error {
	if c.hasExited() || !c.tasks.Push(task) {
		return utils.ErrWorkerExited
	}
	return nil
}

// Next waits up to timeout for the next result, in arrival order.
// Returns ErrWorkerExited once the worker's output has ended and all results
// were consumed, and ErrResultTimeout when the wait expires.
func (c *ProcessChannel) Next(ctx context.Context, timeout time.Duration) (Result, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := c.results.PopContext(waitCtx)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, queue.ErrClosed):
		return Result{}, utils.ErrWorkerExited
	case ctx.Err() != nil:
		return Result{}, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return Result{}, fmt.Errorf("%w after %s", utils.ErrResultTimeout, timeout)
	}
	return Result{}, err
}

// Stop sends the sentinel, waits JoinGrace, then SIGTERM and KillGrace, then kills.
// Safe to call more than once and before Start.
func (c *ProcessChannel) Stop() error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		started, cmd := c.started, c.cmd
		c.mu.Unlock()
		if !started {
			c.tasks.Close()
			return
		}

		if !c.hasExited() {
			c.tasks.Push(StopTask())
		}
		c.tasks.Close()
		if c.waitExit(c.opts.JoinGrace) {
			return
		}

		c.log.Warnf("Automation worker still running after %s, sending SIGTERM", c.opts.JoinGrace)
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			c.log.Debugf("SIGTERM failed: %v", err)
		}
		if c.waitExit(c.opts.KillGrace) {
			return
		}

		c.log.Errorf("Automation worker ignored SIGTERM for %s, killing it", c.opts.KillGrace)
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			c.stopErr = fmt.Errorf("kill automation worker: %w", err)
		}
		<-c.exited
	})
	return c.stopErr
}

func (c *ProcessChannel) waitExit(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.exited:
		return true
	case <-timer.C:
		return false
	}
}

// ExitErr returns the worker's exit error once it has been reaped
func (c *ProcessChannel) ExitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitErr
}
