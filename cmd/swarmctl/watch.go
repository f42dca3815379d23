package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelai/swarmkit/logstream"
)

// WatchCmd tails a session's persisted event log (written by StartCmd
// regardless of --stream-logs, so a session can be watched from a second
// process), printing each event as it's appended — the file-tailing
// equivalent of subscribing to a live LogStream in-process.
type WatchCmd struct {
	ID string `arg:"" help:"Session ID to watch."`
}

func (c *WatchCmd) Run(cli *CLI) error {
	home, err := swarmHome(cli.RootDir)
	if err != nil {
		return err
	}
	path := sessionDir(home, c.ID) + "/events.jsonl"

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("swarmctl watch: no log recorded for session %q", c.ID)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return tailFollow(ctx, f)
}

// tailFollow reads newline-delimited logstream.Event JSON from f, printing
// each as it arrives, and polls for new lines until ctx is cancelled.
//
// A fresh bufio.Reader is seeked to the last confirmed line boundary on
// every attempt rather than reused across retries: bufio read-ahead pulls
// more bytes from f than ReadString hands back, so a writer appending a
// partial line mid-read would otherwise be silently skipped once its
// trailing newline finally arrives.
func tailFollow(ctx context.Context, f *os.File) error {
	var pos int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return err
		}
		line, err := bufio.NewReader(f).ReadString('\n')
		if err != nil {
			time.Sleep(250 * time.Millisecond)
			continue
		}
		pos += int64(len(line))

		var e logstream.Event
		if jsonErr := json.Unmarshal([]byte(line), &e); jsonErr != nil {
			continue
		}
		fmt.Printf("[%s] %s agent=%s swarm=%s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Agent, e.Swarm)
	}
}
