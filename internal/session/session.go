// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package session implements the per-device session runtime: the
// receive/dispatch loop, the three cooperating audio-pipeline stages
// (ingress/ASR, LLM/sentence-stream, TTS/egress), the timeout monitor,
// idempotent close, and hot-reload of a session's provider adapters.
//
// A Session is its own actor: it owns goroutines and channels and never
// reaches into another session's internals. Cross-session communication
// goes through the scheduler's connection registry or the cache, never
// direct references.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/voicegateway/internal/dialogue"
	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/providers"
	"github.com/rapidaai/voicegateway/internal/tools"
)

// Ordinal tags a Sentence's position within its assistant turn.
type Ordinal int

const (
	OrdinalFirst Ordinal = iota
	OrdinalMiddle
	OrdinalLast
)

// ContentKind tags what a Sentence's payload carries.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentFile
	ContentAction
)

// Sentence is one TTS work unit: a fragment of one assistant turn, tagged
// with the sentence-id shared by every ordinal of that turn.
type Sentence struct {
	ID      uuid.UUID
	Ordinal Ordinal
	Kind    ContentKind
	Text    string
	Payload []byte
}

// Named constants the source calls out as empirical; kept here rather
// than buried in pipeline logic so they can be tuned without touching
// behavior.
const (
	// ReorderBufferSize bounds the V2 out-of-order audio frame buffer.
	ReorderBufferSize = 20
	// VADVotingWindow is the rolling frame count majority-voted for
	// have_voice.
	VADVotingWindow = 5
	// AudioQueueSize bounds the ingress audio-in queue.
	AudioQueueSize = 64
	// TTSTextQueueSize bounds the tts-text-in queue.
	TTSTextQueueSize = 16
	// TTSAudioQueueSize bounds the tts-audio-out queue.
	TTSAudioQueueSize = 64
	// DefaultTimeoutSeconds is the last-activity ceiling before the
	// timeout monitor closes an idle session.
	DefaultTimeoutSeconds = 180
	// TimeoutCheckInterval is how often the timeout monitor polls.
	TimeoutCheckInterval = 10 * time.Second
)

// FeatureFlags are negotiated with the device via the inbound `hello`
// control envelope.
type FeatureFlags struct {
	MCP             bool
	FrameDurationMs int
}

// adapterSet holds a session's provider adapters. Swapped as a unit
// during hot-reload (see reload.go); reads take the session mutex.
type adapterSet struct {
	vad        providers.VAD
	asr        providers.ASR
	llm        providers.LLM
	tts        providers.TTS
	memory     providers.Memory
	intent     providers.Intent
	voiceprint providers.Voiceprint
}

// ProviderResolver resolves an AgentBinding into a concrete adapter set,
// DB-backed first with static-config fallback — the runtime cannot tell
// which it got, per spec.md §3. Each adapter kind resolves independently
// so pipeline bring-up can fan them out concurrently (see bringUpPipeline).
type ProviderResolver interface {
	ResolveVAD(ctx context.Context, binding providers.AgentBinding) (providers.VAD, error)
	ResolveASR(ctx context.Context, binding providers.AgentBinding) (providers.ASR, error)
	ResolveLLM(ctx context.Context, binding providers.AgentBinding) (providers.LLM, error)
	ResolveTTS(ctx context.Context, binding providers.AgentBinding) (providers.TTS, error)
	ResolveMemory(ctx context.Context, binding providers.AgentBinding) (providers.Memory, error)
	ResolveIntent(ctx context.Context, binding providers.AgentBinding) (providers.Intent, error)
	ResolveVoiceprint(ctx context.Context, binding providers.AgentBinding) (providers.Voiceprint, error)
}

// BindingResolver loads the AgentBinding a session should use, from a
// database record or static config file.
type BindingResolver interface {
	Resolve(ctx context.Context, agentID uuid.UUID) (providers.AgentBinding, error)
}

// Conn is the minimal socket contract a Session drives; satisfied by
// *websocket.Conn and by a fake in tests.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is the per-connection actor owning one device's runtime state.
// It is constructed on WebSocket accept and torn down on Close; per
// spec.md §3, a Session exclusively owns its adapters after construction.
type Session struct {
	mu sync.Mutex

	id       uuid.UUID
	mac      string
	deviceID uuid.UUID

	binding  providers.AgentBinding
	adapters adapterSet

	dialogue   *dialogue.Dialogue
	dispatcher *tools.Dispatcher

	conn   Conn
	logger logging.Logger

	bindingResolver  BindingResolver
	providerResolver ProviderResolver

	audioIn     chan audioFrame
	ttsTextIn   chan ttsTextJob
	ttsAudioOut chan ttsAudioJob

	// flushCh signals the TTS egress stage to discard queued work
	// immediately, mirroring the teacher's flushAudioCh: used on
	// interruption (client-abort) so stale frames are never sent.
	flushCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce          sync.Once
	pipelineReadyCh   chan struct{}
	pipelineReadyOnce sync.Once

	clientAbort atomic.Bool
	isSpeaking  atomic.Bool
	closed      atomic.Bool
	reloading   atomic.Bool

	audioDropWarned atomic.Bool

	lastActivityMu sync.Mutex
	lastActivity   time.Time

	currentSentenceMu sync.Mutex
	currentSentenceID uuid.UUID

	features FeatureFlags

	wg sync.WaitGroup

	reorder *reorderBuffer

	timeoutSeconds int
}

// audioFrame is one ingress unit carried on audioIn: decoded PCM plus the
// ordering timestamp synthesized or read off the wire.
type audioFrame struct {
	pcm         []int16
	timestampMs uint32
}

type ttsTextJob struct {
	sentence Sentence
	isFirst  bool // true only for the turn's first TTS work unit
	isLast   bool // true only for the turn's last TTS work unit
}

type ttsAudioJob struct {
	sentenceID uuid.UUID
	frame      providers.TTSFrame
	isFirst    bool
	isLast     bool
}

// NewSession constructs a Session bound to mac, with a freshly generated
// session-id and device surrogate id. The receive loop, timeout monitor,
// and pipeline bring-up are started by Start, not here, so tests can
// construct a Session and drive its pieces directly.
func NewSession(mac string, conn Conn, dispatcher *tools.Dispatcher, bindingResolver BindingResolver, providerResolver ProviderResolver, logger logging.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:               uuid.New(),
		mac:              mac,
		deviceID:         uuid.New(),
		dialogue:         dialogue.New(),
		dispatcher:       dispatcher,
		conn:             conn,
		logger:           logger,
		bindingResolver:  bindingResolver,
		providerResolver: providerResolver,
		audioIn:          make(chan audioFrame, AudioQueueSize),
		ttsTextIn:        make(chan ttsTextJob, TTSTextQueueSize),
		ttsAudioOut:      make(chan ttsAudioJob, TTSAudioQueueSize),
		flushCh:          make(chan struct{}, 1),
		ctx:              ctx,
		cancel:           cancel,
		pipelineReadyCh:  make(chan struct{}),
		reorder:          newReorderBuffer(ReorderBufferSize),
		timeoutSeconds:   DefaultTimeoutSeconds,
	}
	s.touchActivity()
	return s
}

// ID returns the session-id.
func (s *Session) ID() uuid.UUID { return s.id }

// MAC returns the device's stable MAC-address identity.
func (s *Session) MAC() string { return s.mac }

// DeviceID returns the surrogate UUID identity, distinct from the wire
// MAC per the open question in spec.md §9: the protocol speaks MAC, the
// database speaks UUID, and the two are never conflated.
func (s *Session) DeviceID() uuid.UUID { return s.deviceID }

// AgentID satisfies the tool surface's sessionAgentID assertion (see
// internal/reminder/tools.go) without internal/tools importing this
// package.
func (s *Session) AgentID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding.AgentID
}

// SetFeatures installs the negotiated feature flags from an inbound
// `hello` envelope.
func (s *Session) SetFeatures(f FeatureFlags) {
	s.mu.Lock()
	s.features = f
	s.mu.Unlock()
}

func (s *Session) Features() FeatureFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.features
}

// Binding returns the currently installed AgentBinding.
func (s *Session) Binding() providers.AgentBinding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

// Dialogue returns the session's dialogue log.
func (s *Session) Dialogue() *dialogue.Dialogue {
	return s.dialogue
}

// Context returns the session-owned context, cancelled on Close.
func (s *Session) Context() context.Context { return s.ctx }

// PipelineReady reports whether adapter bring-up has completed.
func (s *Session) PipelineReady() bool {
	select {
	case <-s.pipelineReadyCh:
		return true
	default:
		return false
	}
}

func (s *Session) markPipelineReady() {
	s.pipelineReadyOnce.Do(func() { close(s.pipelineReadyCh) })
}

// ClientAbort reports the current client-abort flag, the universal
// back-pressure signal set by an inbound `abort` envelope, a timeout, or
// close.
func (s *Session) ClientAbort() bool { return s.clientAbort.Load() }

// SetClientAbort sets or clears the client-abort flag.
func (s *Session) SetClientAbort(v bool) { s.clientAbort.Store(v) }

// IsSpeaking reports whether the TTS egress stage currently holds the
// floor.
func (s *Session) IsSpeaking() bool { return s.isSpeaking.Load() }

func (s *Session) touchActivity() {
	s.lastActivityMu.Lock()
	s.lastActivity = time.Now()
	s.lastActivityMu.Unlock()
}

func (s *Session) idleFor() time.Duration {
	s.lastActivityMu.Lock()
	defer s.lastActivityMu.Unlock()
	return time.Since(s.lastActivity)
}

// Start spawns the receive loop, timeout monitor, and the non-blocking
// pipeline bring-up task. It returns immediately; callers wait on Done or
// simply let the socket own the process's lifetime.
func (s *Session) Start(agentID uuid.UUID) {
	s.wg.Add(1)
	go s.bringUpPipeline(agentID)

	s.wg.Add(1)
	go s.runReceiveLoop()

	s.wg.Add(1)
	go s.runTimeoutMonitor()

	s.wg.Add(1)
	go s.runTTSEgress()
}

// bringUpPipeline loads the agent binding then constructs its seven
// provider adapters concurrently (errgroup.WithContext, the same
// independent-parallel-setup-step pattern the teacher uses to establish a
// connection and fetch history together), setting pipeline-ready only
// once every step succeeds — per spec.md §4.2, audio arriving before
// readiness is buffered (by the OS/transport layer and this package's
// ingress queue) rather than processed.
func (s *Session) bringUpPipeline(agentID uuid.UUID) {
	defer s.wg.Done()

	binding, err := s.bindingResolver.Resolve(s.ctx, agentID)
	if err != nil {
		s.logger.Warnw("agent binding resolution failed", "session", s.id, "error", err)
		return
	}

	var adapters adapterSet
	g, gCtx := errgroup.WithContext(s.ctx)
	g.Go(func() (err error) { adapters.vad, err = s.providerResolver.ResolveVAD(gCtx, binding); return })
	g.Go(func() (err error) { adapters.asr, err = s.providerResolver.ResolveASR(gCtx, binding); return })
	g.Go(func() (err error) { adapters.llm, err = s.providerResolver.ResolveLLM(gCtx, binding); return })
	g.Go(func() (err error) { adapters.tts, err = s.providerResolver.ResolveTTS(gCtx, binding); return })
	g.Go(func() (err error) { adapters.memory, err = s.providerResolver.ResolveMemory(gCtx, binding); return })
	g.Go(func() (err error) { adapters.intent, err = s.providerResolver.ResolveIntent(gCtx, binding); return })
	g.Go(func() (err error) { adapters.voiceprint, err = s.providerResolver.ResolveVoiceprint(gCtx, binding); return })

	if err := g.Wait(); err != nil {
		s.logger.Warnw("provider adapter construction failed", "session", s.id, "error", err)
		return
	}

	s.mu.Lock()
	s.binding = binding
	s.adapters = adapters
	s.dialogue.SetSystem(composeSystemPrompt(binding))
	s.mu.Unlock()

	s.markPipelineReady()

	s.wg.Add(1)
	go s.runASRPipeline()

	s.wg.Add(1)
	go s.runTTSSynthesis()
}

// Done blocks until every owned goroutine has returned.
func (s *Session) Done() {
	s.wg.Wait()
}
