package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pipeline defaults.
const (
	DefaultBufferCapacity = 3
	DefaultPacingDelay    = 100 * time.Millisecond
)

// Delivery disciplines.
const (
	DeliveryOverlapped = "overlapped"
	DeliveryStreamed   = "streamed"
)

// AudioUnit is one synthesized fragment ready for emission. Index and Total
// carry the source fragment position so clients can show progress.
type AudioUnit struct {
	Data  []byte
	Index int
	Total int
}

// SynthesizeFunc renders one fragment to audio bytes.
type SynthesizeFunc func(ctx context.Context, fragment Fragment) ([]byte, error)

// EmitFunc hands one audio unit to the transport. It must not be called
// again after returning an error.
type EmitFunc func(unit AudioUnit) error

// Pipeline converts reply fragments to audio and emits them in order.
type Pipeline struct {
	logger     *slog.Logger
	discipline string
	capacity   int
	pacing     time.Duration
}

// NewPipeline builds a delivery pipeline. discipline selects overlapped
// (synthesis runs ahead of emission through a bounded buffer) or streamed
// (one fragment at a time with a pacing delay).
func NewPipeline(logger *slog.Logger, discipline string, capacity int, pacing time.Duration) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	if pacing <= 0 {
		pacing = DefaultPacingDelay
	}
	if discipline != DeliveryStreamed {
		discipline = DeliveryOverlapped
	}
	return &Pipeline{logger: logger, discipline: discipline, capacity: capacity, pacing: pacing}
}

// Deliver synthesizes every fragment in order and emits the results in the
// same order. A fragment whose synthesis fails is logged and skipped; the
// rest of the reply still goes out. Deliver returns after the last emitted
// unit, exactly once.
func (p *Pipeline) Deliver(ctx context.Context, fragments []Fragment, synth SynthesizeFunc, emit EmitFunc) error {
	if len(fragments) == 0 {
		return nil
	}
	if p.discipline == DeliveryStreamed {
		return p.deliverStreamed(ctx, fragments, synth, emit)
	}
	return p.deliverOverlapped(ctx, fragments, synth, emit)
}

// deliverOverlapped runs synthesis in a producer goroutine feeding a bounded
// channel. The producer closes the channel when it has handled every
// fragment; draining the closed channel is the completion signal.
func (p *Pipeline) deliverOverlapped(ctx context.Context, fragments []Fragment, synth SynthesizeFunc, emit EmitFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	units := make(chan AudioUnit, p.capacity)
	go func() {
		defer close(units)
		for _, fragment := range fragments {
			data, err := synth(ctx, fragment)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warn("fragment synthesis failed, skipping",
					"fragment_index", fragment.Index, "err", err)
				continue
			}
			if len(data) == 0 {
				continue
			}
			select {
			case units <- AudioUnit{Data: data, Index: fragment.Index, Total: fragment.Total}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for unit := range units {
		if err := emit(unit); err != nil {
			cancel()
			for range units {
				// Unblock the producer so its goroutine exits.
			}
			return fmt.Errorf("emit audio unit %d: %w", unit.Index, err)
		}
	}
	return ctx.Err()
}

// deliverStreamed synthesizes and emits one fragment at a time, pausing
// between emissions so the client can start playback promptly.
func (p *Pipeline) deliverStreamed(ctx context.Context, fragments []Fragment, synth SynthesizeFunc, emit EmitFunc) error {
	timer := time.NewTimer(p.pacing)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	emitted := false
	for _, fragment := range fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := synth(ctx, fragment)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("fragment synthesis failed, skipping",
				"fragment_index", fragment.Index, "err", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		if emitted {
			timer.Reset(p.pacing)
			select {
			case <-timer.C:
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			}
		}
		if err := emit(AudioUnit{Data: data, Index: fragment.Index, Total: fragment.Total}); err != nil {
			return fmt.Errorf("emit audio unit %d: %w", fragment.Index, err)
		}
		emitted = true
	}
	return nil
}
