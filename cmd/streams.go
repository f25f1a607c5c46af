package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/beaconcast/beacon/internal/client"
	"github.com/beaconcast/beacon/internal/protocol"
	"github.com/beaconcast/beacon/internal/ui"
)

var flagStreamsOutput string

var streamsCmd = &cobra.Command{
	Use:     "streams",
	Aliases: []string{"ls"},
	Short:   "List live streams on the relay",
	Long: `List the rooms currently open on the relay.

Examples:
  beacon streams
  beacon streams --output md
  beacon streams --server https://beacon.example.com --output csv > streams.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := ui.ParseFormat(flagStreamsOutput)
		if err != nil {
			return err
		}

		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		streams, err := fetchStreams(cmd.Context(), cfg.StreamsURL())
		if err != nil {
			return err
		}
		return ui.WriteStreams(os.Stdout, streams, format)
	},
}

func fetchStreams(ctx context.Context, url string) ([]protocol.StreamSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, client.NewError("list streams", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, client.NewError("list streams", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, client.WrapError("list streams", client.ErrServer, fmt.Sprintf("unexpected status %s", resp.Status))
	}

	var streams []protocol.StreamSummary
	if err := json.NewDecoder(resp.Body).Decode(&streams); err != nil {
		return nil, client.NewError("decode stream list", err)
	}
	return streams, nil
}

func init() {
	rootCmd.AddCommand(streamsCmd)

	streamsCmd.Flags().StringVarP(&flagStreamsOutput, "output", "o", string(ui.FormatTable), "Output format: table, md or csv")
}
