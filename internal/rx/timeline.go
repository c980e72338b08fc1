// internal/rx/timeline.go
package rx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// ParseTimeline reads a recorded signal, one segment per line:
//
//	on 200ms
//	off 800ms
//
// Blank lines and lines starting with '#' are skipped. Each segment becomes a
// sample at the segment's start; a final sample closes the last segment so
// its length is observable.
func ParseTimeline(r io.Reader, start time.Time) ([]Sample, error) {
	var samples []Sample
	at := start
	last := false

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want \"on|off <duration>\", got %q", lineNo, line)
		}

		var high bool
		switch strings.ToLower(fields[0]) {
		case "on", "high", "1":
			high = true
		case "off", "low", "0":
			high = false
		default:
			return nil, fmt.Errorf("line %d: unknown level %q", lineNo, fields[0])
		}

		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("line %d: duration must be positive, got %v", lineNo, d)
		}

		samples = append(samples, Sample{High: high, At: at})
		at = at.Add(d)
		last = high
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}

	if len(samples) > 0 {
		samples = append(samples, Sample{High: !last, At: at})
	}
	return samples, nil
}

// Replay is a Source that delivers a fixed slice of samples as fast as the
// consumer takes them. Decoding depends only on sample timestamps, so a replay
// decodes the same as the live signal it was recorded from.
type Replay struct {
	samples []Sample
	cancel  context.CancelFunc
}

// NewReplay creates a Source over samples.
func NewReplay(samples []Sample) *Replay {
	return &Replay{samples: samples}
}

// Start begins delivering samples.
func (r *Replay) Start(ctx context.Context) (<-chan Sample, error) {
	ctx, r.cancel = context.WithCancel(ctx)
	out := make(chan Sample)

	go func() {
		defer close(out)
		for _, s := range r.samples {
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Stop ends delivery.
func (r *Replay) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}
