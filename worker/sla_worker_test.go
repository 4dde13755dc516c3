package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicroute/service"
)

type fakeScanner struct {
	mu     sync.Mutex
	calls  int
	result service.ScanResult
	err    error
}

func (f *fakeScanner) ScanOnce(ctx context.Context) (service.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *fakeScanner) scanCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSLAWorker_ScansImmediatelyOnStart(t *testing.T) {
	scanner := &fakeScanner{result: service.ScanResult{Scanned: 5}}
	w := NewSLAWorker(scanner, time.Hour, zerolog.Nop())

	w.Start()
	deadline := time.Now().Add(2 * time.Second)
	for scanner.scanCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if scanner.scanCalls() == 0 {
		t.Fatalf("worker never ran the initial scan")
	}

	w.Stop()
	w.Stop() // second stop is a no-op
}

func TestSLAWorker_ScanErrorIsLoggedNotFatal(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("deadlock")}
	var buf bytes.Buffer
	w := NewSLAWorker(scanner, time.Hour, zerolog.New(&buf))

	w.scan()

	if scanner.scanCalls() != 1 {
		t.Fatalf("scan calls = %d; want 1", scanner.scanCalls())
	}
	if !strings.Contains(buf.String(), "scan failed") {
		t.Errorf("log output = %s; want a scan failure entry", buf.String())
	}
}
