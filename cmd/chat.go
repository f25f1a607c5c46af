package cmd

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/beaconcast/beacon/internal/client"
	"github.com/beaconcast/beacon/internal/ui"
)

var flagChatName string

var chatCmd = &cobra.Command{
	Use:   "chat <room-id|url>",
	Short: "Join a room's chat",
	Long: `Join a room as a viewer and open an interactive chat. Press Enter to send,
PgUp/PgDn to scroll and Esc or Ctrl+C to leave.

Examples:
  beacon chat k3j9x0abcde1m2n3o4p5q6r7 --name ana
  beacon chat https://beacon.example.com/stream/k3j9x0abcde1m2n3o4p5q6r7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return joinChat(cmd.Context(), roomID)
	},
}

func joinChat(ctx context.Context, roomID string) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	joined, err := joinRoom(ctx, conn, roomID)
	if err != nil {
		return err
	}

	h := conn.Handler
	model := ui.NewChatModel(joined, conn.SelfID, flagChatName,
		func(message string) error {
			return h.SendChat(joined.RoomID, flagChatName, message)
		},
		ui.ChatSource{
			Messages:     h.Chat,
			Ended:        h.StreamEnded,
			Disconnected: h.Disconnected,
		},
	)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return client.NewError("run chat", err)
	}

	if reason := model.EndReason(); reason != "" {
		ui.PrintWarningf("Chat closed: %s", reason)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&flagChatName, "name", "n", "", "Name shown next to your messages (default \"Anonymous\")")
}
