package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/ytget/stream-downloader/internal/model"
)

// helperM3U8 runs this test binary in place of the real downloader
func helperM3U8(mode string) *M3U8 {
	b := NewM3U8("N_m3u8DL-RE")
	b.command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	return b
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("HELPER_MODE") {
	case "success":
		fmt.Print("Vid 1920x1080 | 5000 Kbps  120/500 24.00% 10.5MB/15.1MB 2.5MBps 00:00:10\r")
		fmt.Print("Vid 1920x1080 | 5000 Kbps  500/500 100.00% 15.1MB/15.1MB 3.1MBps 00:00:00\n")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "ERROR: Response status code does not indicate success: 403 (Forbidden)")
		os.Exit(3)
	case "hang":
		fmt.Println("Vid 1920x1080 | 5000 Kbps  1/500 0.20% 1MB/15.1MB 1.0MBps 00:10:00")
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func TestBuildArgs(t *testing.T) {
	b := NewM3U8("")
	args := b.BuildArgs(model.TaskParams{
		URL:     "https://example.com/index.m3u8",
		Local:   "/downloads",
		Name:    "clip",
		Headers: map[string]string{"Referer": "https://example.com", "Cookie": "a=1"},
		Proxy:   "http://127.0.0.1:7890",
	})

	expected := []string{
		"https://example.com/index.m3u8",
		"--save-dir", "/downloads",
		"--save-name", "clip",
		"--tmp-dir", "/downloads/clip.segments",
		"--del-after-done", "false",
		"--no-log",
		"-H", "Cookie: a=1",
		"-H", "Referer: https://example.com",
		"--custom-proxy", "http://127.0.0.1:7890",
	}

	require.Equal(t, DefaultM3U8Command, b.bin)
	require.Equal(t, expected, args)
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line    string
		percent float64
		speed   string
		ok      bool
	}{
		{"Vid 1920x1080 | 5000 Kbps 120/500 24.00% 10.5MB/15.1MB 2.5MBps 00:00:10", 24, "2.5MBps", true},
		{"Aud 2CH 100.00% 1.2 KB/s", 100, "1.2 KB/s", true},
		{"[download]  42.1% of 10.00MiB", 42.1, "", true},
		{"Parsing content", 0, "", false},
		{"odd 250% line", 0, "", false},
	}

	for _, test := range tests {
		percent, speed, ok := parseProgress(test.line)
		if ok != test.ok || percent != test.percent || speed != test.speed {
			t.Errorf("parseProgress(%q) = %v, %q, %v; expected %v, %q, %v",
				test.line, percent, speed, ok, test.percent, test.speed, test.ok)
		}
	}
}

func TestTail(t *testing.T) {
	tl := newTail(2)
	tl.Add("one")
	tl.Add("two")
	tl.Add("three")

	if got := tl.String(); got != "two\nthree" {
		t.Errorf("tail = %q, expected %q", got, "two\nthree")
	}
}

func runHelper(t *testing.T, mode string, terminate bool) (model.Outcome, []model.Progress) {
	t.Helper()

	r := New(discardLogger(), afero.NewMemMapFs(), map[model.VideoType]Backend{model.VideoTypeM3U8: helperM3U8(mode)})

	var (
		mu       sync.Mutex
		progress []model.Progress
		started  = make(chan struct{}, 1)
	)
	outcomes := make(chan model.Outcome, 1)

	h, err := r.Start(newTask(false),
		func(p model.Progress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
			select {
			case started <- struct{}{}:
			default:
			}
		},
		func(o model.Outcome) { outcomes <- o })
	require.NoError(t, err)

	if terminate {
		select {
		case <-started:
		case <-time.After(10 * time.Second):
			t.Fatal("helper never reported progress")
		}
		h.Terminate()
	}

	var o model.Outcome
	select {
	case o = <-outcomes:
	case <-time.After(20 * time.Second):
		t.Fatal("helper never exited")
	}

	mu.Lock()
	defer mu.Unlock()
	return o, append([]model.Progress(nil), progress...)
}

func TestM3U8Success(t *testing.T) {
	o, progress := runHelper(t, "success", false)

	require.Equal(t, model.OutcomeSuccess, o.Kind)
	require.Equal(t, 0, o.ExitCode)
	require.Len(t, progress, 2)
	require.Equal(t, 24.0, progress[0].Percent)
	require.Equal(t, "3.1MBps", progress[1].Speed)
}

func TestM3U8Failure(t *testing.T) {
	o, _ := runHelper(t, "fail", false)

	require.Equal(t, model.OutcomeFailure, o.Kind)
	require.Equal(t, 3, o.ExitCode)
	require.True(t, strings.Contains(o.Output, "403 (Forbidden)"), o.Output)
}

func TestM3U8Terminate(t *testing.T) {
	o, _ := runHelper(t, "hang", true)

	require.Equal(t, model.OutcomeKilled, o.Kind)
}
