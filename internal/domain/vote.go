package domain

import "time"

type VoteOutcome string

const (
	VoteApproved VoteOutcome = "approved"
	VoteRejected VoteOutcome = "rejected"
)

// PendingVote is an in-flight admission decision for one proposed word.
type PendingVote struct {
	MessageID     string
	ChannelID     string
	CandidateWord string
	OpenedAt      time.Time
}
