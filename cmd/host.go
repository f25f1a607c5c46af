package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beaconcast/beacon/internal/client"
	"github.com/beaconcast/beacon/internal/protocol"
	"github.com/beaconcast/beacon/internal/ui"
)

var (
	flagHostTitle       string
	flagHostDescription string
	flagHostName        string
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Open a room and follow its audience and chat",
	Long: `Open a new room on the relay and stay connected as its host.

Viewer arrivals, departures and chat are printed as they happen. Lines typed
on stdin are posted to the room chat. Press Ctrl+C to end the stream; the
relay keeps the room for a grace period so a browser host can reclaim it.

Examples:
  beacon host --title "Friday build" --description "Fixing the flaky test"
  beacon host --server https://beacon.example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostStream(cmd.Context())
	},
}

func hostStream(ctx context.Context) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	roomID, err := conn.Handler.CreateStream(reqCtx, protocol.CreateStream{
		Title:       flagHostTitle,
		Description: flagHostDescription,
	})
	cancel()
	if err != nil {
		return err
	}

	title := flagHostTitle
	if title == "" {
		title = protocol.DefaultTitle
	}

	fmt.Println()
	fmt.Println(ui.NewRoomInfo(roomID, conn.Config.RoomLink(roomID), title).View())
	fmt.Println()
	ui.PrintInfo("Waiting for viewers. Type to chat, Ctrl+C to end the stream.")

	lines := readLines(ctx)
	h := conn.Handler

	for {
		select {
		case ev := <-h.ViewerJoined:
			fmt.Printf("%s Viewer %s joined %s\n", ui.IconViewer, shortID(ev.ViewerID), watching(ev.ViewerCount))

		case ev := <-h.ViewerLeft:
			fmt.Printf("%s Viewer %s left %s\n", ui.IconLeave, shortID(ev.ViewerID), watching(ev.ViewerCount))

		case msg := <-h.Chat:
			printChat(msg, conn.SelfID)

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := h.SendChat(roomID, flagHostName, line); err != nil {
				ui.PrintWarningf("Message not sent: %v", err)
			}

		case msg := <-h.Errors:
			ui.PrintWarning(msg)

		case reason := <-h.StreamEnded:
			ui.PrintWarningf("Stream ended: %s", reason)
			return nil

		case <-h.Disconnected:
			return client.NewError("host stream", client.ErrDisconnected)

		case <-ctx.Done():
			fmt.Println()
			ui.PrintSuccess("Stream closed")
			return nil
		}
	}
}

// readLines forwards non-empty stdin lines until EOF or ctx ends.
func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func printChat(msg protocol.ChatBroadcast, selfID string) {
	name := ui.ChatNameStyle
	if msg.UserID == selfID {
		name = ui.ChatSelfStyle
	}
	fmt.Printf("%s %s %s\n", ui.ChatTimeStyle.Render(ui.Clock(msg.Timestamp)), name.Render(msg.Username+":"), msg.Message)
}

func watching(n int) string {
	return ui.MutedStyle.Render(fmt.Sprintf("(%d watching)", n))
}

// shortID trims a connection id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(hostCmd)

	hostCmd.Flags().StringVar(&flagHostTitle, "title", "", "Stream title (default \"Untitled Stream\")")
	hostCmd.Flags().StringVar(&flagHostDescription, "description", "", "Stream description")
	hostCmd.Flags().StringVarP(&flagHostName, "name", "n", "Host", "Name shown next to your chat messages")
}
