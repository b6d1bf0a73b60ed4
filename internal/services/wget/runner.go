package wget

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var commandContext = exec.CommandContext

var progressPattern = regexp.MustCompile(`(\d+)%`)

// stderrTail bounds how much diagnostic output an ExitError keeps
const stderrTail = 20

// maxLineSize is the longest diagnostic line parsed for progress
const maxLineSize = 1 << 20

// ExitError is a download process that exited non-zero
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("wget exited with status %d: %s", e.Code, e.Stderr)
}

// Runner downloads URLs by running wget
type Runner struct {
	binary string
	logger *logrus.Logger
}

// NewRunner creates a runner for the given wget binary
func NewRunner(binary string, logger *logrus.Logger) *Runner {
	if binary == "" {
		binary = "wget"
	}
	return &Runner{binary: binary, logger: logger}
}

// Download fetches url into out. onProgress, when set, receives every
// percentage wget reports on its diagnostic stream.
func (r *Runner) Download(ctx context.Context, url, out string, onProgress func(percent int)) error {
	if url == "" {
		return errors.New("download URL required")
	}
	if out == "" {
		return errors.New("output path required")
	}

	cmd := commandContext(ctx, r.binary, url, "-O", out, "--progress=dot:giga") //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start wget: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"url":  url,
		"path": out,
		"pid":  cmd.Process.Pid,
	}).Debug("wget started")

	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if len(tail) == stderrTail {
			tail = tail[1:]
		}
		tail = append(tail, line)

		match := progressPattern.FindStringSubmatch(line)
		if match == nil || onProgress == nil {
			continue
		}
		if percent, err := strconv.Atoi(match[1]); err == nil {
			onProgress(percent)
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// wget blocks on a full pipe, keep reading so Wait can return
		_, _ = io.Copy(io.Discard, stderr)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Stderr: strings.Join(tail, "\n")}
		}
		return fmt.Errorf("wget failed: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("read wget output: %w", scanErr)
	}

	return nil
}
