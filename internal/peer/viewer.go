// Package peer runs the receiving side of a WebRTC broadcast for the beacon CLI.
package peer

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/beaconcast/beacon/internal/client"
	"github.com/beaconcast/beacon/internal/config"
	"github.com/beaconcast/beacon/internal/logging"
)

// ErrUnexpectedDescription is returned when a non-offer is given to HandleOffer.
var ErrUnexpectedDescription = errors.New("unexpected session description")

// SignalFunc sends a local ICE candidate to the remote peer.
type SignalFunc func(to string, c client.Candidate)

// TrackStats counts what arrived on one remote track.
type TrackStats struct {
	ID      string
	Kind    string
	Codec   string
	Packets uint64
	Bytes   uint64
}

type trackCounter struct {
	id, kind, codec string
	packets, bytes  atomic.Uint64
}

// Viewer answers a host's offer and receives its media.
type Viewer struct {
	pc     *pion.PeerConnection
	signal SignalFunc
	logger zerolog.Logger

	mu      sync.Mutex
	remote  string
	pending []pion.ICECandidateInit
	tracks  []*trackCounter

	done     chan struct{}
	doneOnce sync.Once
}

// NewViewer creates a receive-only peer connection using the configured ICE
// servers. signal is called for every local candidate once an offer has been
// answered.
func NewViewer(cfg *config.ClientConfig, signal SignalFunc) (*Viewer, error) {
	pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: iceServers(cfg)})
	if err != nil {
		return nil, client.NewError("create peer connection", err)
	}

	v := &Viewer{
		pc:     pc,
		signal: signal,
		logger: logging.L().With().Str("component", "peer").Logger(),
		done:   make(chan struct{}),
	}

	pc.OnICECandidate(v.onICECandidate)
	pc.OnTrack(v.onTrack)
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		v.logger.Debug().Str("state", state.String()).Msg("peer connection state changed")
		if state == pion.PeerConnectionStateFailed || state == pion.PeerConnectionStateClosed {
			v.doneOnce.Do(func() { close(v.done) })
		}
	})

	return v, nil
}

func iceServers(cfg *config.ClientConfig) []pion.ICEServer {
	var servers []pion.ICEServer
	if stun := cfg.STUNServers(); stun != nil {
		servers = append(servers, pion.ICEServer{URLs: stun})
	}
	if turn := cfg.TURNServers(); turn != nil {
		username, password := cfg.TURNCredentials()
		servers = append(servers, pion.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}
	return servers
}

// Remote is the connection id of the host whose offer was answered.
func (v *Viewer) Remote() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.remote
}

// Done is closed when the peer connection fails or closes.
func (v *Viewer) Done() <-chan struct{} {
	return v.done
}

// HandleOffer applies an offer from the host identified by from and returns
// the answer to send back. Candidates that arrived early are applied once the
// offer is in place.
func (v *Viewer) HandleOffer(from string, offer client.Description) (client.Description, error) {
	if pion.NewSDPType(offer.Type) != pion.SDPTypeOffer {
		return client.Description{}, client.WrapError("handle offer", ErrUnexpectedDescription, offer.Type)
	}

	v.mu.Lock()
	v.remote = from
	v.mu.Unlock()

	if err := v.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer.SDP}); err != nil {
		return client.Description{}, client.NewError("set remote description", err)
	}

	answer, err := v.pc.CreateAnswer(nil)
	if err != nil {
		return client.Description{}, client.NewError("create answer", err)
	}
	if err := v.pc.SetLocalDescription(answer); err != nil {
		return client.Description{}, client.NewError("set local description", err)
	}

	v.flushPending()

	local := v.pc.LocalDescription()
	return client.Description{Type: local.Type.String(), SDP: local.SDP}, nil
}

// AddCandidate applies a remote ICE candidate, holding it until the offer
// has been applied.
func (v *Viewer) AddCandidate(c client.Candidate) error {
	init := toInit(c)

	v.mu.Lock()
	if v.pc.RemoteDescription() == nil {
		v.pending = append(v.pending, init)
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()

	if err := v.pc.AddICECandidate(init); err != nil {
		return client.NewError("add ICE candidate", err)
	}
	return nil
}

func (v *Viewer) flushPending() {
	v.mu.Lock()
	pending := v.pending
	v.pending = nil
	v.mu.Unlock()

	for _, c := range pending {
		if err := v.pc.AddICECandidate(c); err != nil {
			v.logger.Debug().Err(err).Msg("dropping early ICE candidate")
		}
	}
}

func (v *Viewer) onICECandidate(c *pion.ICECandidate) {
	if c == nil {
		return
	}
	to := v.Remote()
	if to == "" || v.signal == nil {
		return
	}
	v.signal(to, fromInit(c.ToJSON()))
}

func (v *Viewer) onTrack(track *pion.TrackRemote, _ *pion.RTPReceiver) {
	tc := &trackCounter{
		id:    track.ID(),
		kind:  track.Kind().String(),
		codec: track.Codec().MimeType,
	}
	v.mu.Lock()
	v.tracks = append(v.tracks, tc)
	v.mu.Unlock()

	v.logger.Info().Str("kind", tc.kind).Str("codec", tc.codec).Msg("receiving track")

	go func() {
		buf := make([]byte, 1500)
		for {
			n, _, err := track.Read(buf)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					v.logger.Debug().Err(err).Str("kind", tc.kind).Msg("track read ended")
				}
				return
			}
			tc.packets.Add(1)
			tc.bytes.Add(uint64(n))
		}
	}()
}

// Stats returns per-track counters in arrival order.
func (v *Viewer) Stats() []TrackStats {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]TrackStats, 0, len(v.tracks))
	for _, t := range v.tracks {
		out = append(out, TrackStats{
			ID:      t.id,
			Kind:    t.kind,
			Codec:   t.codec,
			Packets: t.packets.Load(),
			Bytes:   t.bytes.Load(),
		})
	}
	return out
}

// Close tears down the peer connection.
func (v *Viewer) Close() error {
	if err := v.pc.Close(); err != nil {
		return fmt.Errorf("close peer connection: %w", err)
	}
	return nil
}

func toInit(c client.Candidate) pion.ICECandidateInit {
	return pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromInit(c pion.ICECandidateInit) client.Candidate {
	return client.Candidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
