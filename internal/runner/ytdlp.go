package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ytget/stream-downloader/internal/model"
	"github.com/ytget/stream-downloader/internal/platform"
)

const (
	DefaultYTDLPCommand = "yt-dlp"

	// Progress callback interval
	progressInterval = 500 * time.Millisecond

	// Output template, extension is chosen by yt-dlp
	outputTemplateExt = ".%(ext)s"
)

// YTDLP downloads pages supported by yt-dlp
type YTDLP struct {
	bin string
	run func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error)
}

// NewYTDLP creates the backend for the given executable path
func NewYTDLP(bin string) *YTDLP {
	if bin == "" {
		bin = DefaultYTDLPCommand
	}
	return &YTDLP{
		bin: bin,
		run: func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error) {
			return cmd.Run(ctx, url)
		},
	}
}

// Command configures yt-dlp for one task
func (b *YTDLP) Command(p model.TaskParams, report ProgressFunc) *ytdlp.Command {
	dl := ytdlp.New().
		SetExecutable(b.bin).
		ForceOverwrites().
		NoPart().
		Output(filepath.Join(p.Local, p.Name+outputTemplateExt)).
		Paths("temp:" + platform.SegmentDir(p.Local, p.Name))

	if !p.DeleteSegments {
		dl = dl.KeepFragments()
	}
	if p.Proxy != "" {
		dl = dl.Proxy(p.Proxy)
	}

	keys := make([]string, 0, len(p.Headers))
	for k := range p.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dl = dl.AddHeaders(k + ":" + p.Headers[k])
	}

	if report != nil {
		dl = dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			if update.TotalBytes > 0 {
				report(float64(update.DownloadedBytes)/float64(update.TotalBytes)*100, "")
			}
		})
	}
	return dl
}

func (b *YTDLP) Start(ctx context.Context, p model.TaskParams, report ProgressFunc) (<-chan Exit, error) {
	dl := b.Command(p, report)

	exits := make(chan Exit, 1)
	go func() {
		defer close(exits)

		res, err := b.run(ctx, dl, p.URL)

		exit := Exit{}
		if res != nil {
			exit.Code = res.ExitCode
			t := newTail(outputTailLines)
			for _, line := range strings.Split(strings.TrimSpace(res.Stderr), "\n") {
				t.Add(line)
			}
			exit.Output = t.String()
		}
		if err != nil {
			if exit.Code == 0 {
				exit.Code = -1
			}
			exit.Err = fmt.Errorf("yt-dlp failed: %w", err)
		}
		exits <- exit
	}()

	return exits, nil
}
