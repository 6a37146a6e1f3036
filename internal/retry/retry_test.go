package retry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/forgeport/forgeport/internal/github"
	"github.com/forgeport/forgeport/internal/output"
)

// fakeLimiter returns scripted quota readings, repeating the last one.
type fakeLimiter struct {
	readings []github.RateLimit
	probes   int
}

func (f *fakeLimiter) RateLimit(ctx context.Context) (*github.RateLimit, error) {
	i := f.probes
	if i >= len(f.readings) {
		i = len(f.readings) - 1
	}
	f.probes++
	r := f.readings[i]
	return &r, nil
}

// newTestInvoker builds an invoker with a scripted limiter, captured output,
// and recorded sleeps.
func newTestInvoker(limiter *fakeLimiter, stderr *bytes.Buffer) (*Invoker, *[]time.Duration) {
	w := output.New(false, true)
	w.Stdout = &bytes.Buffer{}
	w.Stderr = stderr

	var sleeps []time.Duration
	in := New(limiter, w)
	in.SleepFn = func(d time.Duration) { sleeps = append(sleeps, d) }
	in.NowFn = func() time.Time { return time.Unix(1000, 0) }
	return in, &sleeps
}

func healthy() *fakeLimiter {
	return &fakeLimiter{readings: []github.RateLimit{{Limit: 5000, Remaining: 4000}}}
}

func TestDoRetriesTransientWithBackoff(t *testing.T) {
	in, sleeps := newTestInvoker(healthy(), &bytes.Buffer{})

	calls := 0
	err := in.Do(context.Background(), "create widget", func() error {
		calls++
		if calls < 3 {
			return &github.StatusError{StatusCode: 502, Body: "bad gateway"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*sleeps) != 2 || (*sleeps)[0] != want[0] || (*sleeps)[1] != want[1] {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	in, sleeps := newTestInvoker(healthy(), &bytes.Buffer{})

	calls := 0
	err := in.Do(context.Background(), "create widget", func() error {
		calls++
		return &github.StatusError{StatusCode: 503, Body: "unavailable"}
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// The original error comes back, not a retry wrapper.
	var se *github.StatusError
	if !errors.As(err, &se) || se.StatusCode != 503 {
		t.Errorf("err = %v, want the final StatusError", err)
	}
	if len(*sleeps) != 2 {
		t.Errorf("sleeps = %v, want two backoff waits", *sleeps)
	}
}

func TestDoPermanentErrorNoRetry(t *testing.T) {
	in, sleeps := newTestInvoker(healthy(), &bytes.Buffer{})

	calls := 0
	err := in.Do(context.Background(), "look up widget", func() error {
		calls++
		return github.ErrNotFound
	})
	if !errors.Is(err, github.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", *sleeps)
	}
}

func TestExhaustedQuotaWaitsForReset(t *testing.T) {
	limiter := &fakeLimiter{readings: []github.RateLimit{
		{Limit: 5000, Remaining: 0, Reset: time.Unix(1030, 0)},
		{Limit: 5000, Remaining: 4000},
	}}
	in, sleeps := newTestInvoker(limiter, &bytes.Buffer{})

	calls := 0
	err := in.Do(context.Background(), "create widget", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	// 30s to the stated reset plus the 10s safety margin.
	if len(*sleeps) != 1 || (*sleeps)[0] != 40*time.Second {
		t.Errorf("sleeps = %v, want [40s]", *sleeps)
	}
	if limiter.probes != 2 {
		t.Errorf("probes = %d, want a re-probe after the wait", limiter.probes)
	}
}

func TestLowQuotaWarnsOnceUntilRecovery(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	limiter := &fakeLimiter{readings: []github.RateLimit{
		{Limit: 5000, Remaining: 5},
		{Limit: 5000, Remaining: 5},
		{Limit: 5000, Remaining: 4000},
		{Limit: 5000, Remaining: 5},
	}}
	var stderr bytes.Buffer
	in, _ := newTestInvoker(limiter, &stderr)

	ok := func() error { return nil }
	for i := 0; i < 4; i++ {
		if err := in.Do(context.Background(), "op", ok); err != nil {
			t.Fatalf("Do %d: %v", i, err)
		}
	}

	// Warned on the first low reading, silent on the repeat, warned again
	// after quota recovered and dropped a second time.
	if got := strings.Count(stderr.String(), "rate limit low"); got != 2 {
		t.Errorf("low-quota warnings = %d, want 2\nstderr: %s", got, stderr.String())
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	in, _ := newTestInvoker(healthy(), &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := in.Do(ctx, "op", func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}
