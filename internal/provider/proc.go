package provider

import (
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// agentProcess bundles a spawned agent CLI with its standard streams.
// The owning backend holds the only reference; reader goroutines get
// the stream handles, never the struct.
type agentProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// waitDone is closed when the single cmd.Wait call returns, so
	// Stop can await process exit without calling Wait twice.
	waitDone chan struct{}
}

// startAgentProcess spawns the agent CLI in its own process group and
// wires up all three standard streams. The process group lets Stop
// take down the whole subprocess tree in one signal.
func startAgentProcess(command string, args []string, dir string, env []string) (*agentProcess, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // own process group so the whole tree dies together
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	p := &agentProcess{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		waitDone: make(chan struct{}),
	}

	// Sole caller of cmd.Wait. Stop coordinates via waitDone.
	go func() {
		cmd.Wait()
		close(p.waitDone)
	}()

	return p, nil
}

// kill force-terminates the process group and waits for the process
// to be reaped. Stdin is closed first so well-behaved agents see an
// EOF; no grace period is granted after that.
func (p *agentProcess) kill() {
	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		// Negative pid signals the whole process group.
		syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
	}
	<-p.waitDone
}

// pid returns the process id, or 0 if the process never started.
func (p *agentProcess) pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
