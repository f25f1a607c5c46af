package client

// Description is a session description as browsers serialize it.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is an ICE candidate as browsers serialize it.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Offer is a relayed stream-offer.
type Offer struct {
	Offer Description `json:"offer"`
	From  string      `json:"from"`
}

// Answer is a relayed stream-answer.
type Answer struct {
	Answer Description `json:"answer"`
	From   string      `json:"from"`
}

// RemoteCandidate is a relayed ice-candidate.
type RemoteCandidate struct {
	Candidate Candidate `json:"candidate"`
	From      string    `json:"from"`
}
