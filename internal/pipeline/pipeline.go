// Package pipeline implements the two-stage reading scheduler: a pool of
// synthesis workers turns queued utterances into audio clips, and a single
// playback worker renders them to the output device in queue order.
//
// The two queues decouple the stages so a slow synthesis call never stalls
// playback of already-rendered clips. Speech rate adapts to backlog: each
// synthesis worker samples the combined queue depth when it picks up a job
// and maps it to a speed multiplier, so the reader catches up during comment
// bursts instead of falling further behind. Failed jobs are logged and
// dropped; the pipeline never retries and never stops on a provider error.
//
// Ordering is best-effort. Parallel synthesis may finish out of submission
// order, and the playback worker plays clips in completion order.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hikaline/kanade/internal/observe"
	"github.com/hikaline/kanade/pkg/provider/playback"
	"github.com/hikaline/kanade/pkg/provider/tts"
)

const (
	defaultSynthesisWorkers = 5
	defaultQueueSize        = 100

	// defaultShutdownGrace bounds how long Shutdown waits for in-flight jobs
	// before cancelling the workers outright.
	defaultShutdownGrace = 2 * time.Second
)

// SynthesisJob is one utterance waiting for synthesis.
type SynthesisJob struct {
	// Text is the transformed, speakable utterance.
	Text string

	// VoiceID selects the TTS speaker.
	VoiceID int

	// Seq is the submission sequence number, diagnostic only.
	Seq uint64

	// poison tells a worker to exit instead of processing.
	poison bool
}

// PlaybackJob is one rendered clip waiting for the playback worker.
type PlaybackJob struct {
	// Label describes the clip in logs ("comment", "sound:gift", ...).
	Label string

	// Audio is the complete clip handed to the playback backend.
	Audio []byte

	poison bool
}

// Status is a point-in-time snapshot of the pipeline, served on the admin
// status endpoint.
type Status struct {
	TextQueued       int     `json:"text_queued"`
	AudioQueued      int     `json:"audio_queued"`
	SynthesisWorkers int     `json:"synthesis_workers"`
	Submitted        uint64  `json:"submitted"`
	Played           uint64  `json:"played"`
	Dropped          uint64  `json:"dropped"`
	Speed            float64 `json:"speed"`
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithSynthesisWorkers sets the synthesis worker pool size. Defaults to 5.
func WithSynthesisWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the capacity of both queues. Defaults to 100. A full
// queue drops new jobs rather than blocking the enqueuer.
func WithQueueSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithShutdownGrace sets how long Shutdown waits for in-flight jobs before
// cancelling workers. Defaults to 2 s.
func WithShutdownGrace(d time.Duration) Option {
	return func(p *Pipeline) {
		p.grace = d
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline owns the two queues and the worker pool. Create with [New], then
// [Pipeline.Start] once; enqueue from any goroutine.
type Pipeline struct {
	tts     tts.Provider
	player  playback.Player
	metrics *observe.Metrics

	workers   int
	queueSize int
	grace     time.Duration

	textQueue  chan SynthesisJob
	audioQueue chan PlaybackJob

	seq       atomic.Uint64
	played    atomic.Uint64
	dropped   atomic.Uint64
	lastSpeed atomic.Uint64 // float64 bits

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Pipeline using the given synthesis and playback backends.
func New(ttsProvider tts.Provider, player playback.Player, opts ...Option) *Pipeline {
	p := &Pipeline{
		tts:       ttsProvider,
		player:    player,
		workers:   defaultSynthesisWorkers,
		queueSize: defaultQueueSize,
		grace:     defaultShutdownGrace,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	p.textQueue = make(chan SynthesisJob, p.queueSize)
	p.audioQueue = make(chan PlaybackJob, p.queueSize)
	p.lastSpeed.Store(floatBits(1.0))
	// Shutdown may run before Start.
	p.cancel = func() {}
	return p
}

// Start launches the worker pool. Workers run until Shutdown is called or
// ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.synthesisWorker(ctx)
	}
	p.wg.Add(1)
	go p.playbackWorker(ctx)

	slog.Info("pipeline: started",
		"synthesis_workers", p.workers, "queue_size", p.queueSize)
}

// Enqueue submits an utterance for synthesis. It never blocks: when the text
// queue is full the job is dropped and logged.
func (p *Pipeline) Enqueue(text string, voiceID int) {
	job := SynthesisJob{
		Text:    text,
		VoiceID: voiceID,
		Seq:     p.seq.Add(1),
	}
	select {
	case p.textQueue <- job:
	default:
		p.drop(context.Background(), "synthesis", "queue full", job.Seq)
	}
}

// EnqueueAudio submits a pre-rendered clip straight to the playback queue,
// bypassing synthesis. Used for sound-effect announcements that should keep
// their place in the playback order.
func (p *Pipeline) EnqueueAudio(label string, audio []byte) {
	select {
	case p.audioQueue <- PlaybackJob{Label: label, Audio: audio}:
	default:
		p.drop(context.Background(), "playback", "queue full", 0)
	}
}

// PlayAside renders a clip on a detached goroutine, outside the playback
// queue. Used for short notification sounds that may overlap speech. Errors
// are logged and discarded.
func (p *Pipeline) PlayAside(ctx context.Context, label string, audio []byte) {
	go func() {
		if err := p.player.Play(ctx, audio); err != nil && ctx.Err() == nil {
			slog.Warn("pipeline: aside playback failed", "label", label, "err", err)
		}
	}()
}

// Load is the combined depth of both queues, the input to the speed table.
func (p *Pipeline) Load() int {
	return len(p.textQueue) + len(p.audioQueue)
}

// Status returns a snapshot for the admin status endpoint.
func (p *Pipeline) Status() Status {
	return Status{
		TextQueued:       len(p.textQueue),
		AudioQueued:      len(p.audioQueue),
		SynthesisWorkers: p.workers,
		Submitted:        p.seq.Load(),
		Played:           p.played.Load(),
		Dropped:          p.dropped.Load(),
		Speed:            floatFrom(p.lastSpeed.Load()),
	}
}

// Shutdown drains the pipeline: each worker receives a poison job, and
// in-flight work gets the grace period to finish before the workers are
// cancelled. Shutdown returns ctx.Err() if ctx expires first, nil otherwise.
// Safe to call more than once.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			select {
			case p.textQueue <- SynthesisJob{poison: true}:
			default:
				// Queue full: the backlog will never drain in time anyway,
				// the grace timer below cancels the worker.
			}
		}
		select {
		case p.audioQueue <- PlaybackJob{poison: true}:
		default:
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			slog.Warn("pipeline: shutdown grace elapsed, cancelling workers")
			p.cancel()
			<-done
		case <-ctx.Done():
			p.cancel()
			<-done
			err = ctx.Err()
		}
		p.cancel()
		slog.Info("pipeline: stopped",
			"played", p.played.Load(), "dropped", p.dropped.Load())
	})
	return err
}

// synthesisWorker pops utterances, synthesises them at backlog-adapted
// speed, and pushes the clips to the playback queue.
func (p *Pipeline) synthesisWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.textQueue:
			if job.poison {
				return
			}
			p.synthesize(ctx, job)
		}
	}
}

func (p *Pipeline) synthesize(ctx context.Context, job SynthesisJob) {
	load := p.Load()
	speed := SpeedForLoad(load)
	p.lastSpeed.Store(floatBits(speed))
	p.recordQueueDepth(ctx)

	start := time.Now()
	audio, err := p.tts.Synthesize(ctx, job.Text, job.VoiceID, speed)
	p.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("pipeline: synthesis failed, dropping job",
				"seq", job.Seq, "voice", job.VoiceID, "err", err)
		}
		p.dropped.Add(1)
		p.metrics.DroppedJobs.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", "synthesis")))
		return
	}

	select {
	case p.audioQueue <- PlaybackJob{Label: "comment", Audio: audio}:
	case <-ctx.Done():
	}
}

// playbackWorker renders clips one at a time in queue order.
func (p *Pipeline) playbackWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.audioQueue:
			if job.poison {
				return
			}
			p.play(ctx, job)
		}
	}
}

func (p *Pipeline) play(ctx context.Context, job PlaybackJob) {
	start := time.Now()
	err := p.player.Play(ctx, job.Audio)
	p.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("pipeline: playback failed, dropping job",
				"label", job.Label, "err", err)
		}
		p.dropped.Add(1)
		p.metrics.DroppedJobs.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", "playback")))
		return
	}
	p.played.Add(1)
}

func (p *Pipeline) drop(ctx context.Context, stage, reason string, seq uint64) {
	p.dropped.Add(1)
	p.metrics.DroppedJobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage)))
	slog.Warn("pipeline: job dropped", "stage", stage, "reason", reason, "seq", seq)
}

func (p *Pipeline) recordQueueDepth(ctx context.Context) {
	p.metrics.TextQueueDepth.Record(ctx, int64(len(p.textQueue)))
	p.metrics.AudioQueueDepth.Record(ctx, int64(len(p.audioQueue)))
}

func floatBits(f float64) uint64 { return math.Float64bits(f) }

func floatFrom(b uint64) float64 { return math.Float64frombits(b) }
