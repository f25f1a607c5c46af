package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/beaconcast/beacon/internal/protocol"
)

const (
	maxTitleWidth       = 40
	maxDescriptionWidth = 50
)

func styledTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// StreamTable renders the room directory.
type StreamTable struct {
	streams []protocol.StreamSummary
	now     time.Time
}

// NewStreamTable creates a table for the given directory entries.
func NewStreamTable(streams []protocol.StreamSummary) *StreamTable {
	return &StreamTable{streams: streams, now: time.Now()}
}

// View renders the table as a string
func (t *StreamTable) View() string {
	if len(t.streams) == 0 {
		return MutedStyle.Render("No live streams")
	}

	rows := make([][]string, 0, len(t.streams))
	for _, s := range t.streams {
		rows = append(rows, []string{
			s.RoomID,
			truncate(s.Title, maxTitleWidth),
			truncate(s.Description, maxDescriptionWidth),
			strconv.Itoa(s.ViewerCount),
			Age(s.CreatedAt, t.now),
		})
	}

	return styledTable([]string{"Room", "Title", "Description", "Viewers", "Live for"}, rows).Render()
}

// RoomInfo is the box shown to a host once its room exists.
type RoomInfo struct {
	RoomID   string
	RoomLink string
	Title    string
}

func NewRoomInfo(roomID, roomLink, title string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
		Title:    title,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s %s\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconLive, BoldStyle.Render(r.Title),
		IconRoom, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconLink, MutedStyle.Render(r.RoomLink),
	)

	return SuccessBoxStyle.Render(content)
}

// WatchSummary describes a finished viewing session.
type WatchSummary struct {
	RoomID   string
	Title    string
	Reason   string
	Tracks   []TrackStat
	Duration time.Duration
}

// TrackStat is what a viewer received on one remote track.
type TrackStat struct {
	Kind    string
	Codec   string
	Packets uint64
	Bytes   uint64
}

func WatchSummaryView(s WatchSummary) string {
	rows := [][]string{
		{"Room", s.RoomID},
		{"Title", truncate(s.Title, maxTitleWidth)},
		{"Ended", s.Reason},
		{IconTime + " Duration", s.Duration.Round(time.Second).String()},
	}
	for _, tr := range s.Tracks {
		rows = append(rows, []string{
			fmt.Sprintf("%s %s track", IconTrack, tr.Kind),
			fmt.Sprintf("%s, %d packets, %s", tr.Codec, tr.Packets, FormatBytes(tr.Bytes)),
		})
	}
	if len(s.Tracks) == 0 {
		rows = append(rows, []string{"Tracks", "none received"})
	}

	return styledTable([]string{"Metric", "Value"}, rows).Render()
}

func RenderWatchSummary(s WatchSummary) {
	fmt.Println(WatchSummaryView(s))
}

// Age renders how long ago an ISO-8601 timestamp was, e.g. "5m". Timestamps
// that do not parse are returned unchanged.
func Age(createdAt string, now time.Time) string {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return createdAt
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	}
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
