package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beaconcast/beacon/internal/client"
	"github.com/beaconcast/beacon/internal/logging"
	"github.com/beaconcast/beacon/internal/peer"
	"github.com/beaconcast/beacon/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch <room-id|url>",
	Aliases: []string{"w"},
	Short:   "Join a stream as a viewer and receive its media",
	Long: `Join a room as a viewer, answer the host's WebRTC offer and receive its
audio and video tracks. A packet summary is printed when the stream ends or
you press Ctrl+C.

Examples:
  beacon watch k3j9x0abcde1m2n3o4p5q6r7
  beacon watch https://beacon.example.com/stream/k3j9x0abcde1m2n3o4p5q6r7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return watchStream(cmd.Context(), roomID)
	},
}

func watchStream(ctx context.Context, roomID string) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	joined, err := joinRoom(ctx, conn, roomID)
	if err != nil {
		return err
	}
	ui.PrintSuccessf("Joined %s %s", ui.BoldStyle.Render(joined.StreamInfo.Title), watching(joined.ViewerCount))

	h := conn.Handler
	signal := func(to string, c client.Candidate) {
		if err := h.SendCandidate(to, c); err != nil {
			l := logging.L()
			l.Debug().Err(err).Msg("failed to send ICE candidate")
		}
	}

	viewer, err := peer.NewViewer(conn.Config, signal)
	if err != nil {
		return err
	}
	defer func() { viewer.Close() }()

	stopSpinner := ui.RunWaitingSpinner("Waiting for the host's offer...")
	defer func() { stopSpinner() }()

	started := time.Now()
	peerDone := viewer.Done()
	reason := "Stopped"

loop:
	for {
		select {
		case offer := <-h.Offers:
			if remote := viewer.Remote(); remote != "" && remote != offer.From {
				// A new host took over the room; start a fresh connection.
				viewer.Close()
				if viewer, err = peer.NewViewer(conn.Config, signal); err != nil {
					return err
				}
				peerDone = viewer.Done()
			}

			answer, err := viewer.HandleOffer(offer.From, offer.Offer)
			if err != nil {
				ui.PrintWarningf("Could not answer offer: %v", err)
				continue
			}
			if err := h.SendAnswer(offer.From, answer); err != nil {
				return client.NewError("send answer", err)
			}
			stopSpinner()
			ui.PrintSuccessf("Answered offer from host %s", shortID(offer.From))

		case cand := <-h.Candidates:
			if remote := viewer.Remote(); remote != "" && remote != cand.From {
				continue
			}
			if err := viewer.AddCandidate(cand.Candidate); err != nil {
				l := logging.L()
				l.Debug().Err(err).Msg("rejected remote ICE candidate")
			}

		case msg := <-h.Chat:
			printChat(msg, conn.SelfID)

		case <-peerDone:
			peerDone = nil
			ui.PrintWarning("Peer connection closed, waiting for a new offer")

		case msg := <-h.Errors:
			ui.PrintWarning(msg)

		case r := <-h.StreamEnded:
			reason = r
			break loop

		case <-h.Disconnected:
			reason = "Disconnected from relay"
			break loop

		case <-ctx.Done():
			break loop
		}
	}

	stopSpinner()
	fmt.Println()
	ui.RenderWatchSummary(ui.WatchSummary{
		RoomID:   joined.RoomID,
		Title:    joined.StreamInfo.Title,
		Reason:   reason,
		Tracks:   trackStats(viewer.Stats()),
		Duration: time.Since(started),
	})
	return nil
}

func trackStats(in []peer.TrackStats) []ui.TrackStat {
	out := make([]ui.TrackStat, 0, len(in))
	for _, s := range in {
		out = append(out, ui.TrackStat{Kind: s.Kind, Codec: s.Codec, Packets: s.Packets, Bytes: s.Bytes})
	}
	return out
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
