package sfu

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Config holds the listen/announce/port-range settings every Worker uses to
// build its pion API instance.
type Config struct {
	ListenIP    string
	AnnouncedIP string
	MinPort     uint16
	MaxPort     uint16
	ICEServers  []webrtc.ICEServer
}

// Worker is the isolation unit the SFU Adapter pools: a dedicated
// MediaEngine/SettingEngine pair, standing in for the OS-process-level
// worker a native media engine would hand out. All routers pinned to a
// worker share its pion API instance.
type Worker struct {
	ID     string
	api    *webrtc.API
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	dead   bool
}

// NewWorker builds a pion API instance scoped to this worker: fixed codec
// set, restricted UDP port range, and the configured announced IP for NAT
// traversal.
func NewWorker(cfg Config, logger *zap.Logger) (*Worker, error) {
	m := &webrtc.MediaEngine{}
	if err := registerCodecs(m); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	registerBitrateCap(i, maxIncomingBitrate)

	s := webrtc.SettingEngine{}
	if cfg.MinPort > 0 && cfg.MaxPort > cfg.MinPort {
		if err := s.SetEphemeralUDPPortRange(cfg.MinPort, cfg.MaxPort); err != nil {
			return nil, fmt.Errorf("set port range: %w", err)
		}
	}
	if cfg.AnnouncedIP != "" {
		s.SetNAT1To1IPs([]string{cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s))

	id := uuid.NewString()
	return &Worker{
		ID:     id,
		api:    api,
		cfg:    cfg,
		logger: logger.With(zap.String("worker", id)),
	}, nil
}

// CreateRouter allocates a new codec/routing scope pinned to this worker.
func (w *Worker) CreateRouter() *Router {
	return &Router{
		ID:             uuid.NewString(),
		worker:         w,
		producerCodecs: make(map[string]string),
		logger:         w.logger,
	}
}

// Dead reports whether C10 has marked this worker unusable after a failure.
func (w *Worker) Dead() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dead
}

// MarkDead flags the worker so in-flight rooms fail fast on their next
// operation; the pool replaces it with a fresh worker.
func (w *Worker) MarkDead() {
	w.mu.Lock()
	w.dead = true
	w.mu.Unlock()
}

func (w *Worker) iceConfiguration() webrtc.Configuration {
	return webrtc.Configuration{ICEServers: w.cfg.ICEServers}
}
