package rwmem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"vled/register"
)

type Config struct {
	Tool        string
	UseSudo     bool
	Password    string
	ValueOffset int
	Timeout     time.Duration
}

type Queue struct {
	register.BaseQueue

	cfg Config

	// swapped by tests:
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewQueue(cfg Config) *Queue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	q := &Queue{
		cfg:            cfg,
		commandContext: exec.CommandContext,
	}
	q.BaseInit(driverName, q)
	return q
}

// IsTerminalError treats a missing tool (or sudo) as fatal; a failing
// invocation is reported per command.
func (q *Queue) IsTerminalError(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

func (q *Queue) ReadRegister(address uint32) (uint32, error) {
	out, err := q.run(formatHex(address))
	if err != nil {
		return 0, err
	}
	v, err := ParseValue(out, q.cfg.ValueOffset)
	if err != nil {
		return 0, fmt.Errorf("rwmem: read %s: %w", formatHex(address), err)
	}
	return v, nil
}

func (q *Queue) WriteRegister(address uint32, value uint32) error {
	_, err := q.run(formatHex(address), formatHex(value))
	return err
}

func (q *Queue) CloseBackend() error {
	return nil
}

// args returns the program and arguments for one invocation of the tool.
func (q *Queue) args(toolArgs ...string) (string, []string) {
	if !q.cfg.UseSudo {
		return q.cfg.Tool, toolArgs
	}
	// -S reads the password from stdin; -p "" silences the prompt on stderr.
	return "sudo", append([]string{"-S", "-p", "", q.cfg.Tool}, toolArgs...)
}

func (q *Queue) run(toolArgs ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.Timeout)
	defer cancel()

	name, args := q.args(toolArgs...)
	cmd := q.commandContext(ctx, name, args...)
	if q.cfg.UseSudo {
		cmd.Stdin = strings.NewReader(q.cfg.Password + "\n")
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("rwmem: %s %s: %w: %s", q.cfg.Tool, strings.Join(toolArgs, " "), err, msg)
		}
		return "", fmt.Errorf("rwmem: %s %s: %w", q.cfg.Tool, strings.Join(toolArgs, " "), err)
	}

	return stdout.String(), nil
}

func formatHex(v uint32) string {
	return fmt.Sprintf("0x%X", v)
}

// ParseValue extracts the register value from the tool output. The value text
// starts at offset; numbers may be hex (0x prefix) or decimal. When the text at
// offset does not parse, the last whitespace-separated field is tried.
func ParseValue(output string, offset int) (uint32, error) {
	output = strings.TrimRight(output, "\r\n")
	if offset < len(output) {
		if v, err := parseNumber(output[offset:]); err == nil {
			return v, nil
		}
	}

	fields := strings.Fields(output)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty tool output")
	}
	v, err := parseNumber(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("unrecognized tool output %q", output)
	}
	return v, nil
}

func parseNumber(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		n, err := strconv.ParseUint(s[2:], 16, 32)
		return uint32(n), err
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		// bare hex, e.g. "000000FF":
		n, err = strconv.ParseUint(s, 16, 32)
		if err != nil {
			return 0, err
		}
	}
	return uint32(n), nil
}
