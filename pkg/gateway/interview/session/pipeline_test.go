package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeFragments(n int) []Fragment {
	frags := make([]Fragment, n)
	for i := range frags {
		frags[i] = Fragment{Text: fmt.Sprintf("fragment %d.", i), Index: i, Total: n}
	}
	return frags
}

func TestDeliverOverlapped_OrderPreservedUnderVariableLatency(t *testing.T) {
	t.Parallel()

	frags := makeFragments(6)
	// Earlier fragments synthesize slower than later ones.
	synth := func(ctx context.Context, f Fragment) ([]byte, error) {
		time.Sleep(time.Duration(5-f.Index) * 2 * time.Millisecond)
		return []byte(f.Text), nil
	}
	var got []int
	emit := func(u AudioUnit) error {
		got = append(got, u.Index)
		return nil
	}

	p := NewPipeline(discardLogger(), DeliveryOverlapped, 3, time.Millisecond)
	if err := p.Deliver(context.Background(), frags, synth, emit); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	for i, idx := range got {
		if idx != i {
			t.Fatalf("emission order %v, want ascending", got)
		}
	}
	if len(got) != len(frags) {
		t.Fatalf("emitted %d units, want %d", len(got), len(frags))
	}
}

func TestDeliverOverlapped_SkipsFailedFragments(t *testing.T) {
	t.Parallel()

	frags := makeFragments(3)
	synth := func(ctx context.Context, f Fragment) ([]byte, error) {
		if f.Index == 1 {
			return nil, errors.New("synthesis refused")
		}
		return []byte(f.Text), nil
	}
	var got []int
	emit := func(u AudioUnit) error {
		got = append(got, u.Index)
		return nil
	}

	p := NewPipeline(discardLogger(), DeliveryOverlapped, 3, time.Millisecond)
	if err := p.Deliver(context.Background(), frags, synth, emit); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("emitted indices %v, want [0 2]", got)
	}
}

func TestDeliverOverlapped_EmitErrorStopsProducer(t *testing.T) {
	t.Parallel()

	frags := makeFragments(10)
	synth := func(ctx context.Context, f Fragment) ([]byte, error) {
		return []byte(f.Text), nil
	}
	calls := 0
	emit := func(u AudioUnit) error {
		calls++
		if calls == 2 {
			return errors.New("peer gone")
		}
		return nil
	}

	p := NewPipeline(discardLogger(), DeliveryOverlapped, 2, time.Millisecond)
	err := p.Deliver(context.Background(), frags, synth, emit)
	if err == nil {
		t.Fatal("expected emit error to propagate")
	}
	if calls != 2 {
		t.Fatalf("emit called %d times after failure", calls)
	}
}

func TestDeliverOverlapped_ProducerRespectsBufferBound(t *testing.T) {
	t.Parallel()

	frags := makeFragments(8)
	var synthesized, emitted, maxAhead atomic.Int32
	synth := func(ctx context.Context, f Fragment) ([]byte, error) {
		ahead := synthesized.Add(1) - emitted.Load()
		for {
			prev := maxAhead.Load()
			if ahead <= prev || maxAhead.CompareAndSwap(prev, ahead) {
				break
			}
		}
		return []byte(f.Text), nil
	}
	emit := func(u AudioUnit) error {
		time.Sleep(time.Millisecond)
		emitted.Add(1)
		return nil
	}

	p := NewPipeline(discardLogger(), DeliveryOverlapped, 2, time.Millisecond)
	if err := p.Deliver(context.Background(), frags, synth, emit); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	// Capacity 2 buffer plus one unit held by emit and one by the producer.
	if got := maxAhead.Load(); got > 4 {
		t.Fatalf("producer ran %d units ahead of emission, want bounded", got)
	}
}

func TestDeliverStreamed_OrderAndPacing(t *testing.T) {
	t.Parallel()

	frags := makeFragments(3)
	synth := func(ctx context.Context, f Fragment) ([]byte, error) {
		return []byte(f.Text), nil
	}
	var got []int
	var stamps []time.Time
	emit := func(u AudioUnit) error {
		got = append(got, u.Index)
		stamps = append(stamps, time.Now())
		return nil
	}

	pacing := 20 * time.Millisecond
	p := NewPipeline(discardLogger(), DeliveryStreamed, 0, pacing)
	if err := p.Deliver(context.Background(), frags, synth, emit); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("emission order %v", got)
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < pacing/2 {
			t.Fatalf("gap %v between units %d and %d, want pacing near %v", gap, i-1, i, pacing)
		}
	}
}

func TestDeliverStreamed_SkipsFailedFragments(t *testing.T) {
	t.Parallel()

	frags := makeFragments(3)
	synth := func(ctx context.Context, f Fragment) ([]byte, error) {
		if f.Index == 0 {
			return nil, errors.New("synthesis refused")
		}
		return []byte(f.Text), nil
	}
	var got []int
	p := NewPipeline(discardLogger(), DeliveryStreamed, 0, time.Millisecond)
	err := p.Deliver(context.Background(), frags, synth, func(u AudioUnit) error {
		got = append(got, u.Index)
		return nil
	})
	if err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("emitted indices %v, want [1 2]", got)
	}
}

func TestDeliver_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frags := makeFragments(3)
	p := NewPipeline(discardLogger(), DeliveryStreamed, 0, time.Millisecond)
	err := p.Deliver(ctx, frags, func(context.Context, Fragment) ([]byte, error) {
		return []byte("x"), nil
	}, func(AudioUnit) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDeliver_EmptyFragmentList(t *testing.T) {
	t.Parallel()

	p := NewPipeline(discardLogger(), DeliveryOverlapped, 3, time.Millisecond)
	err := p.Deliver(context.Background(), nil, func(context.Context, Fragment) ([]byte, error) {
		t.Fatal("synth should not run")
		return nil, nil
	}, func(AudioUnit) error {
		t.Fatal("emit should not run")
		return nil
	})
	if err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
}
