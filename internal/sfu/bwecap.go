package sfu

import (
	"sync"
	"time"

	"github.com/pion/interceptor"
)

// bitrateCapInterceptor enforces maxIncomingBitrate by dropping RTP packets
// on any remote stream once its byte count in the current one-second window
// would push it over the cap. Each bound stream gets its own counter, so a transport
// carrying both an audio and a video track is capped per track.
type bitrateCapInterceptor struct {
	interceptor.NoOp
	capBitsPerSec int
}

func newBitrateCapInterceptor(capBitsPerSec int) *bitrateCapInterceptor {
	return &bitrateCapInterceptor{capBitsPerSec: capBitsPerSec}
}

type capFactory struct {
	capBitsPerSec int
}

// NewInterceptor satisfies interceptor.Factory so the registry can build one
// instance of bitrateCapInterceptor per PeerConnection.
func (f *capFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return newBitrateCapInterceptor(f.capBitsPerSec), nil
}

// registerBitrateCap adds the cap factory to the registry; call this
// alongside webrtc.RegisterDefaultInterceptors when building a Worker's API.
func registerBitrateCap(reg *interceptor.Registry, capBitsPerSec int) {
	reg.Add(&capFactory{capBitsPerSec: capBitsPerSec})
}

// BindRemoteStream wraps the reader for one inbound RTP stream with a
// one-second byte budget (a fixed window that starts over once a second has
// passed since it opened); packets arriving once the budget is spent
// are read off the wire (so the underlying transport doesn't stall) but
// dropped rather than forwarded to the rest of the interceptor chain.
func (b *bitrateCapInterceptor) BindRemoteStream(info *interceptor.StreamInfo, reader interceptor.RTPReader) interceptor.RTPReader {
	capped := &cappedRTPReader{next: reader, capBitsPerSec: b.capBitsPerSec, windowStart: time.Now()}
	return interceptor.RTPReaderFunc(capped.Read)
}

type cappedRTPReader struct {
	next          interceptor.RTPReader
	capBitsPerSec int

	mu          sync.Mutex
	windowStart time.Time
	windowBytes int
}

func (r *cappedRTPReader) Read(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
	for {
		n, attr, err := r.next.Read(b, a)
		if err != nil {
			return n, attr, err
		}
		if !r.overBudget(n) {
			return n, attr, nil
		}
		// budget exhausted for this window: drop this packet and read the next
	}
}

func (r *cappedRTPReader) overBudget(n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if now.Sub(r.windowStart) >= time.Second {
		r.windowStart = now
		r.windowBytes = 0
	}
	r.windowBytes += n
	return r.windowBytes*8 > r.capBitsPerSec
}
