package console

import (
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
)

// RoomConnector establishes a live media session once a token has been
// issued. The production implementation delegates to the LiveKit SDK;
// tests substitute a fake.
type RoomConnector interface {
	// Connect joins the room the token was minted for. The room name is
	// encoded in the token; serverURL selects the media server. The
	// returned handle stays open until the process exits.
	Connect(serverURL, token string) (RoomHandle, error)
}

// RoomHandle is a live media session. The console never drives the session
// after joining; the handle exists so the process can disconnect cleanly on
// exit.
type RoomHandle interface {
	// Name returns the room's name as reported by the server.
	Name() string

	// Close disconnects from the room.
	Close()
}

// liveKitConnector joins rooms through the LiveKit SDK with an audio-only
// subscription policy: remote audio stays subscribed, remote video is
// unsubscribed as soon as it is published. Every lifecycle callback is
// logged and otherwise ignored; the session is never torn down or retried
// from a callback.
type liveKitConnector struct {
	logger Logger
}

// NewLiveKitConnector returns the production RoomConnector.
func NewLiveKitConnector(logger Logger) RoomConnector {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &liveKitConnector{logger: logger}
}

func (c *liveKitConnector) Connect(serverURL, token string) (RoomHandle, error) {
	room, err := lksdk.ConnectToRoomWithToken(serverURL, token, c.roomCallback())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to room: %w", err)
	}
	c.logger.Info("Connected to room", "room", room.Name(), "url", serverURL)
	return &liveKitRoom{room: room}, nil
}

func (c *liveKitConnector) roomCallback() *lksdk.RoomCallback {
	log := c.logger
	return &lksdk.RoomCallback{
		OnDisconnected: func() {
			log.Info("Disconnected from room")
		},
		OnDisconnectedWithReason: func(reason lksdk.DisconnectionReason) {
			log.Info("Disconnected from room with reason", "reason", string(reason))
		},
		OnReconnecting: func() {
			log.Info("Reconnecting to room")
		},
		OnReconnected: func() {
			log.Info("Reconnected to room")
		},
		OnParticipantConnected: func(participant *lksdk.RemoteParticipant) {
			log.Info("Participant joined", "identity", participant.Identity())
		},
		OnParticipantDisconnected: func(participant *lksdk.RemoteParticipant) {
			log.Info("Participant left", "identity", participant.Identity())
		},
		OnActiveSpeakersChanged: func(speakers []lksdk.Participant) {
			identities := make([]string, 0, len(speakers))
			for _, s := range speakers {
				identities = append(identities, s.Identity())
			}
			log.Debug("Active speakers changed", "speakers", identities)
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackPublished: func(publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				log.Info("Track published", "kind", publication.Kind(), "participant", rp.Identity())
				if publication.Kind() == lksdk.TrackKindVideo {
					// Audio-only station: refuse video before it flows.
					if err := publication.SetSubscribed(false); err != nil {
						log.Warn("Failed to unsubscribe video track", "sid", publication.SID(), "error", err)
					}
				}
			},
			OnTrackSubscribed: func(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				log.Info("Track subscribed", "kind", track.Kind().String(), "sid", publication.SID(), "participant", rp.Identity())
			},
			OnTrackUnsubscribed: func(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				log.Info("Track unsubscribed", "sid", publication.SID(), "participant", rp.Identity())
			},
			OnTrackMuted: func(pub lksdk.TrackPublication, p lksdk.Participant) {
				log.Debug("Track muted", "sid", pub.SID(), "participant", p.Identity())
			},
			OnTrackUnmuted: func(pub lksdk.TrackPublication, p lksdk.Participant) {
				log.Debug("Track unmuted", "sid", pub.SID(), "participant", p.Identity())
			},
			OnConnectionQualityChanged: func(update *livekit.ConnectionQualityInfo, p lksdk.Participant) {
				log.Debug("Connection quality changed", "participant", p.Identity(), "quality", update.Quality.String())
			},
		},
	}
}

type liveKitRoom struct {
	room *lksdk.Room
}

func (r *liveKitRoom) Name() string {
	return r.room.Name()
}

func (r *liveKitRoom) Close() {
	r.room.Disconnect()
}
