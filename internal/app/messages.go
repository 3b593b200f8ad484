package app

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	emojiApprove = "✅"
	emojiReject  = "❌"
)

const (
	replyAlreadyRegistered = "This channel is already registered."
	replyRegistered        = "Registered this channel."
	replyRegisterFailed    = "Failed to register this channel."
	replyCheckFailed       = "Something went wrong while checking this word."
)

var voteWordPattern = regexp.MustCompile(`"([a-z]+(?: [a-z]+)*)"`)

func duplicateStatus(word string) string {
	return fmt.Sprintf("Checking whether %q was already played...", word)
}

func duplicateResult(word string, played bool) string {
	if played {
		return fmt.Sprintf("%q has already been played.", word)
	}
	return fmt.Sprintf("%q has not been played yet.", word)
}

func dictionaryStatus(word string) string {
	return fmt.Sprintf("Looking up %q in the dictionary...", word)
}

func dictionaryResult(word string, recognized bool) string {
	if recognized {
		return fmt.Sprintf("%q is in the dictionary.", word)
	}
	return fmt.Sprintf("%q was not found in the dictionary.", word)
}

func similarStatus(word string) string {
	return fmt.Sprintf("Searching for words similar to %q...", word)
}

func similarResult(matches []string) string {
	if len(matches) == 0 {
		return "No similar words found."
	}
	return "Similar words: " + strings.Join(matches, ", ")
}

func voteMessage(word string) string {
	return fmt.Sprintf("Vote: should %q be added? React %s to approve or %s to reject.", word, emojiApprove, emojiReject)
}

func voteClosedMessage(word string, approved bool) string {
	if approved {
		return fmt.Sprintf("Vote closed: %q was approved and added.", word)
	}
	return fmt.Sprintf("Vote closed: %q was rejected.", word)
}

// extractVoteWord recovers the candidate from a vote message's text.
func extractVoteWord(content string) (string, bool) {
	m := voteWordPattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}
