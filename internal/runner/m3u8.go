package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ytget/stream-downloader/internal/model"
	"github.com/ytget/stream-downloader/internal/platform"
)

// Stream downloader command line
const (
	DefaultM3U8Command = "N_m3u8DL-RE"

	flagSaveDir       = "--save-dir"
	flagSaveName      = "--save-name"
	flagTmpDir        = "--tmp-dir"
	flagDelAfterDone  = "--del-after-done"
	flagNoLog         = "--no-log"
	flagHeader        = "-H"
	flagCustomProxy   = "--custom-proxy"
	delAfterDoneValue = "false"

	// Number of output lines kept for failure reports
	outputTailLines = 20

	// Time a terminated process gets before it is killed
	terminateGrace = 5 * time.Second
)

var (
	percentRe = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)
	speedRe   = regexp.MustCompile(`(\d+(?:\.\d+)?\s?[KMGT]?i?B(?:ps|/s))`)
)

// M3U8 runs the external HLS downloader binary
type M3U8 struct {
	bin     string
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewM3U8 creates the backend for the given executable path
func NewM3U8(bin string) *M3U8 {
	if bin == "" {
		bin = DefaultM3U8Command
	}
	return &M3U8{bin: bin, command: exec.CommandContext}
}

// BuildArgs builds the downloader command arguments
func (b *M3U8) BuildArgs(p model.TaskParams) []string {
	args := []string{
		p.URL,
		flagSaveDir, p.Local,
		flagSaveName, p.Name,
		flagTmpDir, platform.SegmentDir(p.Local, p.Name),
		flagDelAfterDone, delAfterDoneValue,
		flagNoLog,
	}

	// Stable header order keeps invocations reproducible
	keys := make([]string, 0, len(p.Headers))
	for k := range p.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, flagHeader, k+": "+p.Headers[k])
	}

	if p.Proxy != "" {
		args = append(args, flagCustomProxy, p.Proxy)
	}
	return args
}

func (b *M3U8) Start(ctx context.Context, p model.TaskParams, report ProgressFunc) (<-chan Exit, error) {
	cmd := b.command(ctx, b.bin, b.BuildArgs(p)...)
	cmd.Cancel = func() error {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = terminateGrace

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", b.bin, err)
	}

	tail := newTail(outputTailLines)
	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		monitorProgress(pr, tail, report)
	}()

	exits := make(chan Exit, 1)
	go func() {
		defer close(exits)

		err := cmd.Wait()
		_ = pw.Close()
		<-scanned

		exit := Exit{Output: tail.String()}
		var exitErr *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			exit.Code = exitErr.ExitCode()
		default:
			exit.Code = -1
			exit.Err = err
		}
		exits <- exit
	}()

	return exits, nil
}

// monitorProgress reads the merged process output line by line
func monitorProgress(r io.Reader, tail *tail, report ProgressFunc) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanProgressLines)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail.Add(line)

		percent, speed, ok := parseProgress(line)
		if ok && report != nil {
			report(percent, speed)
		}
	}
	// Drain so the writer never blocks after a scan error
	_, _ = io.Copy(io.Discard, r)
}

// parseProgress extracts the percentage and speed of a progress line
func parseProgress(line string) (float64, string, bool) {
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil || percent > 100 {
		return 0, "", false
	}

	speed := ""
	if s := speedRe.FindStringSubmatch(line); s != nil {
		speed = s[1]
	}
	return percent, speed, true
}

// scanProgressLines splits on both \n and \r, progress bars redraw with \r
func scanProgressLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tail keeps the last n lines written to it
type tail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
