package repo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"live_analysis/internal/domain"
	errors2 "live_analysis/internal/errors"
)

const (
	stderrTag        = "[STDERR] "
	maxLoggedLine    = 300
	resultBufferSize = 256
	maxLineSize      = 16 * 1024 * 1024
)

// KatagoSession runs a KataGo analysis engine: queries go to its stdin one per line,
// results are read from stdout and stderr is kept as log lines.
type KatagoSession struct {
	log         *zap.SugaredLogger
	pollTimeout time.Duration
	stopGrace   time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writer  *bufio.Writer
	pumps   *errgroup.Group
	results chan domain.AnalysisResult
	closed  chan struct{}

	writeMu sync.Mutex

	logMu sync.Mutex
	logs  []string
}

func NewKatagoSession(log *zap.SugaredLogger, pollTimeout, stopGrace time.Duration) *KatagoSession {
	return &KatagoSession{
		log:         log,
		pollTimeout: pollTimeout,
		stopGrace:   stopGrace,
	}
}

// Start launches the engine. ctx only bounds the launch, the process outlives it.
func (k *KatagoSession) Start(ctx context.Context, executable string, args []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cmd != nil {
		return errors2.ErrEngineAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors2.ErrStartFailure, err)
	}
	path, err := exec.LookPath(executable)
	if err != nil {
		return fmt.Errorf("%w: %v", errors2.ErrStartFailure, err)
	}

	cmd := exec.Command(path, args...)
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin: %v", errors2.ErrStartFailure, err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout: %v", errors2.ErrStartFailure, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: stderr: %v", errors2.ErrStartFailure, err)
	}

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", errors2.ErrStartFailure, err)
	}

	results := make(chan domain.AnalysisResult, resultBufferSize)
	closed := make(chan struct{})

	pumps := new(errgroup.Group)
	pumps.Go(func() error {
		defer close(closed)
		return k.readResults(stdoutPipe, results)
	})
	pumps.Go(func() error {
		return k.readStderr(stderrPipe)
	})

	k.cmd = cmd
	k.stdin = stdinPipe
	k.writer = bufio.NewWriter(stdinPipe)
	k.pumps = pumps
	k.results = results
	k.closed = closed

	k.log.Infow("katago process started", "pid", cmd.Process.Pid, "path", path)
	return nil
}

// Analyze writes one request line.
func (k *KatagoSession) Analyze(payload []byte) error {
	k.mu.Lock()
	writer := k.writer
	k.mu.Unlock()
	if writer == nil {
		return errors2.ErrEngineNotRunning
	}

	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	if _, err := writer.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", errors2.ErrSubmitFailure, err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("%w: %v", errors2.ErrSubmitFailure, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: %v", errors2.ErrSubmitFailure, err)
	}
	k.appendLog(">>> " + string(payload))
	return nil
}

// NextResult waits up to the poll timeout for the next result line.
func (k *KatagoSession) NextResult(ctx context.Context) (domain.AnalysisResult, error) {
	k.mu.Lock()
	results, closed := k.results, k.closed
	k.mu.Unlock()
	if results == nil {
		return domain.AnalysisResult{}, errors2.ErrEngineNotRunning
	}

	select {
	case r := <-results:
		return r, nil
	default:
	}

	timer := time.NewTimer(k.pollTimeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r, nil
	case <-ctx.Done():
		return domain.AnalysisResult{}, ctx.Err()
	case <-closed:
		select {
		case r := <-results:
			return r, nil
		default:
			return domain.AnalysisResult{}, errors2.ErrEngineClosed
		}
	case <-timer.C:
		return domain.AnalysisResult{}, errors2.ErrPollTimeout
	}
}

// Logs returns the lines collected since the previous call.
func (k *KatagoSession) Logs() []string {
	k.logMu.Lock()
	defer k.logMu.Unlock()
	out := k.logs
	k.logs = nil
	return out
}

// Stop closes stdin so the engine exits on its own and kills it after the grace period.
func (k *KatagoSession) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cmd == nil {
		return errors2.ErrEngineNotRunning
	}
	cmd, pumps := k.cmd, k.pumps

	k.writeMu.Lock()
	_ = k.writer.Flush()
	_ = k.stdin.Close()
	k.writeMu.Unlock()

	exited := make(chan error, 1)
	go func() {
		pumpErr := pumps.Wait()
		waitErr := cmd.Wait()
		if pumpErr != nil {
			exited <- pumpErr
			return
		}
		exited <- waitErr
	}()

	var err error
	select {
	case err = <-exited:
	case <-time.After(k.stopGrace):
		k.log.Warnw("katago did not exit in time, killing", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		err = <-exited
	}

	k.cmd = nil
	k.stdin = nil
	k.writer = nil
	k.pumps = nil
	k.results = nil
	k.closed = nil

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("katago shutdown: %w", err)
	}
	k.log.Infow("katago process stopped", "exit", cmd.ProcessState.String())
	return nil
}

func (k *KatagoSession) readResults(r io.Reader, results chan domain.AnalysisResult) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		k.appendLog("<<< " + truncate(string(line), maxLoggedLine))

		var res domain.AnalysisResult
		if err := json.Unmarshal(line, &res); err != nil {
			k.log.Warnw("failed to unmarshal katago response", "error", err, "line", truncate(string(line), maxLoggedLine))
			continue
		}
		deliver(results, res)
	}
	if err := scanner.Err(); err != nil {
		k.log.Errorw("katago stdout read failed", "error", err)
		return err
	}
	return nil
}

func (k *KatagoSession) readStderr(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		k.appendLog(stderrTag + scanner.Text())
	}
	return scanner.Err()
}

func (k *KatagoSession) appendLog(line string) {
	k.logMu.Lock()
	k.logs = append(k.logs, line)
	k.logMu.Unlock()
}

// deliver never blocks the reader: when nobody polls, the oldest result is dropped.
func deliver(results chan domain.AnalysisResult, res domain.AnalysisResult) {
	for {
		select {
		case results <- res:
			return
		default:
		}
		select {
		case <-results:
		default:
		}
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
