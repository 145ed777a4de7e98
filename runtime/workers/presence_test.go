package workers

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedCounter int

func (c fixedCounter) Online() int { return int(c) }

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPresenceWorker_Reports_Online_Count(t *testing.T) {
	req := require.New(t)
	out := &lockedBuffer{}
	log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	worker := NewPresenceWorker(log, fixedCounter(3), 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// When the worker runs until its context expires
	err := worker.Run(ctx)

	// Then it stops with the context error and has logged the presence
	req.ErrorIs(err, context.DeadlineExceeded)
	req.Contains(out.String(), "Relay presence")
	req.Contains(out.String(), "online=3")
}
