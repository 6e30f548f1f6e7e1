package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shpitdev/dossier-outreach/pkg/pipeline/core"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/worker"
)

func fastOpts(maxRetries int) worker.Options {
	return worker.Options{
		MaxRetries:        maxRetries,
		RequestTimeout:    time.Second,
		BackoffInitial:    time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		BackoffJitterFrac: 0,
	}
}

func TestRetry_RetriesTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", &core.TransientError{Err: errors.New("try again")}
		}
		return "ok", nil
	}

	out, err := worker.Retry(context.Background(), nil, fastOpts(3), fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output: %q", out)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_DoesNotRetryPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "", errors.New("permanent")
	}

	_, err := worker.Retry(context.Background(), nil, fastOpts(10), fn)
	if err == nil || err.Error() != "permanent" {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetry_RespectsPerErrorRetryCap(t *testing.T) {
	t.Parallel()

	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "", &core.LimitedTransientError{
			Err:          errors.New("quota"),
			ExtraRetries: 1,
		}
	}

	_, err := worker.Retry(context.Background(), nil, fastOpts(10), fn)
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls (1 initial + 1 retry), got %d", calls)
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		cancel()
		return "", &core.TransientError{Err: errors.New("try again")}
	}

	_, err := worker.Retry(ctx, worker.NewLimiter(1000), fastOpts(5), fn)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestNewLimiter_DisabledForNonPositive(t *testing.T) {
	if worker.NewLimiter(0) != nil || worker.NewLimiter(-1) != nil {
		t.Fatalf("expected nil limiter for non-positive rps")
	}
	if worker.NewLimiter(2) == nil {
		t.Fatalf("expected limiter for rps=2")
	}
}

func TestProcessInOrder_CallbackRunsBeforeNextItem(t *testing.T) {
	t.Parallel()

	var events []string
	proc := core.ProcessFunc[string, string](func(_ context.Context, in string) (string, error) {
		events = append(events, "process:"+in)
		return in + "!", nil
	})

	out, err := worker.ProcessInOrder(context.Background(), []string{"a", "b", "c"}, proc, func(r worker.Result[string, string]) error {
		events = append(events, "done:"+r.Output)
		return nil
	}, worker.FailurePolicyPartialOutput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}

	want := []string{"process:a", "done:a!", "process:b", "done:b!", "process:c", "done:c!"}
	if len(events) != len(want) {
		t.Fatalf("events=%v want=%v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d]=%q want=%q (all=%v)", i, events[i], want[i], events)
		}
	}
}

func TestProcessInOrder_PartialOutputContinuesAfterError(t *testing.T) {
	t.Parallel()

	proc := core.ProcessFunc[string, string](func(_ context.Context, in string) (string, error) {
		if in == "bad" {
			return "", errors.New("boom")
		}
		return in, nil
	})

	out, err := worker.ProcessInOrder(context.Background(), []string{"a", "bad", "c"}, proc, nil, worker.FailurePolicyPartialOutput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 || out[1].Err == nil || out[2].Output != "c" {
		t.Fatalf("unexpected results: %#v", out)
	}
}

func TestProcessInOrder_FailFastStops(t *testing.T) {
	t.Parallel()

	calls := 0
	proc := core.ProcessFunc[string, string](func(_ context.Context, in string) (string, error) {
		calls++
		if in == "bad" {
			return "", errors.New("boom")
		}
		return in, nil
	})

	_, err := worker.ProcessInOrder(context.Background(), []string{"a", "bad", "c"}, proc, nil, worker.FailurePolicyFailFast)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestProcessInOrder_RecoversPanic(t *testing.T) {
	t.Parallel()

	proc := core.ProcessFunc[string, string](func(_ context.Context, in string) (string, error) {
		if in == "panic" {
			panic("kaboom")
		}
		return in, nil
	})

	out, err := worker.ProcessInOrder(context.Background(), []string{"panic", "ok"}, proc, nil, worker.FailurePolicyPartialOutput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var pe *worker.PanicError
	if !errors.As(out[0].Err, &pe) {
		t.Fatalf("expected PanicError, got %v", out[0].Err)
	}
	if out[1].Output != "ok" {
		t.Fatalf("run should continue after panic: %#v", out)
	}
}

func TestProcessInOrder_CallbackErrorStops(t *testing.T) {
	t.Parallel()

	proc := core.ProcessFunc[string, string](func(_ context.Context, in string) (string, error) {
		return in, nil
	})
	stop := errors.New("write failed")

	out, err := worker.ProcessInOrder(context.Background(), []string{"a", "b"}, proc, func(worker.Result[string, string]) error {
		return stop
	}, worker.FailurePolicyPartialOutput)
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result before stop, got %d", len(out))
	}
}
