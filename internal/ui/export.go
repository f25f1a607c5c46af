package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/beaconcast/beacon/internal/protocol"
)

// Format selects how the stream directory is printed.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
)

// ParseFormat validates an --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatMarkdown, FormatCSV:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, md or csv)", s)
	}
}

// WriteStreams prints the directory to w in the requested format. Markdown and
// CSV are meant for piping and carry the raw creation timestamp.
func WriteStreams(w io.Writer, streams []protocol.StreamSummary, format Format) error {
	if format == FormatTable {
		_, err := fmt.Fprintln(w, NewStreamTable(streams).View())
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Room", "Title", "Description", "Viewers", "Created"})
	for _, s := range streams {
		t.AppendRow(table.Row{s.RoomID, s.Title, s.Description, s.ViewerCount, s.CreatedAt})
	}

	var out string
	switch format {
	case FormatMarkdown:
		out = t.RenderMarkdown()
	case FormatCSV:
		out = t.RenderCSV()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	_, err := fmt.Fprintln(w, out)
	return err
}
