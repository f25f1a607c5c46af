package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/beaconcast/beacon/internal/client"
	"github.com/beaconcast/beacon/internal/ui"
)

// parseRoomInput accepts a bare room id or a room link ending in
// /stream/<roomId>.
func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.ContainsAny(input, "./") {
		roomID, err := extractRoomIDFromURL(input)
		if err != nil {
			return "", err
		}
		ui.PrintSuccessf("Extracted room ID: %s", roomID)
		return roomID, nil
	}

	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	raw := urlStr
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return "", client.NewError("parse URL", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "stream" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}
