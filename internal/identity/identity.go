// Package identity derives the composite identifiers used to scope memories
// on the remote OpenMem API: the conversation ID (a content hash of the
// conversation's first message) and the channel-namespaced effective user ID.
// All functions are pure; configuration normalization happens at load time.
package identity

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// DefaultChannel is the channel tag that leaves the user ID un-namespaced.
const DefaultChannel = "DEFAULT"

// knownChannels is the fixed allow-list of calling surfaces. Tags are stored
// normalized (upper-case); IsKnownChannel assumes normalized input.
var knownChannels = map[string]bool{
	DefaultChannel: true,
	"CLAUDE":       true,
	"CLINE":        true,
	"CURSOR":       true,
	"DEEPCHAT":     true,
}

// ConversationID derives a deterministic conversation identifier from the
// configured user ID and the conversation's first message.
// Identical (userID, firstMessage) pairs always produce the same ID, so a
// conversation can be re-addressed across sessions without any local index.
// Format: full lowercase-hex SHA-256 of "userID\nfirstMessage".
func ConversationID(userID, firstMessage string) string {
	h := sha256.Sum256([]byte(userID + "\n" + firstMessage))
	return fmt.Sprintf("%x", h)
}

// NormalizeChannel trims whitespace and upper-cases a channel tag so that
// lookups against the allow-list are case-insensitive.
func NormalizeChannel(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// IsKnownChannel reports whether tag is in the channel allow-list.
// The tag must already be normalized (see NormalizeChannel).
func IsKnownChannel(tag string) bool {
	return knownChannels[tag]
}

// KnownChannels returns the allow-listed channel tags in unspecified order.
// Used to build human-readable error messages.
func KnownChannels() []string {
	out := make([]string, 0, len(knownChannels))
	for tag := range knownChannels {
		out = append(out, tag)
	}
	return out
}

// EffectiveUserID namespaces the configured user ID by channel. The default
// channel maps to the bare user ID; every other channel appends "-<tag>" so
// that surfaces sharing one backing identity never collide.
func EffectiveUserID(userID, channel string) string {
	if channel == DefaultChannel {
		return userID
	}
	return userID + "-" + channel
}
