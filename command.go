package main

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Command wraps an external process. Unless the output buffer is disabled,
// stdout and stderr are collected so they can be stored with a failed job.
type Command struct {
	cmd    *exec.Cmd
	name   string
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mu                     sync.Mutex
	output                 bytes.Buffer
	isOutputBufferDisabled bool
}

func NewCommandContext(ctx context.Context, cmdName string, args ...string) *Command {
	cmd := exec.CommandContext(ctx, cmdName, args...)
	return &Command{cmd: cmd, name: cmdName + " " + strings.Join(args, " ")}
}

func (c *Command) Name() string { return c.name }

// DisableOutputBuffer keeps stdout free for a pipe. Stderr is still
// collected.
func (c *Command) DisableOutputBuffer() {
	c.isOutputBufferDisabled = true
}

func (c *Command) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.Write(p)
}

func (c *Command) GetStdin() (io.WriteCloser, error) {
	if c.stdin == nil {
		stdin, err := c.cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		c.stdin = stdin
	}
	return c.stdin, nil
}

func (c *Command) GetStdout() (io.ReadCloser, error) {
	if c.stdout == nil {
		stdout, err := c.cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		c.stdout = stdout
	}
	return c.stdout, nil
}

func (c *Command) Start() error {
	if !c.isOutputBufferDisabled && c.stdout == nil {
		c.cmd.Stdout = c
	}
	c.cmd.Stderr = c

	return c.cmd.Start()
}

func (c *Command) Wait() error {
	return c.cmd.Wait()
}

func (c *Command) CombinedOutput() (string, error) {
	if err := c.Start(); err != nil {
		return "", err
	}

	err := c.Wait()
	return c.GetOutput(), err
}

func (c *Command) GetOutput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.String()
}
