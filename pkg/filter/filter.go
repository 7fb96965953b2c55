package filter

import (
	"time"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// Counts reports how many messages survived each predicate
type Counts struct {
	Found       int
	FullySigned int
	NonExpired  int
}

// FullySigned keeps the messages that reached quorum: CONFIRMED with a prepared signature
func FullySigned(messages []*types.RawStoredMessage) []*types.RawStoredMessage {
	out := make([]*types.RawStoredMessage, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		if m.Status == types.MessageStatusConfirmed && m.Signature() != "" {
			out = append(out, m)
		}
	}
	return out
}

// NonExpired keeps the messages whose declared timestamp plus the delay window is still ahead
// of now. Messages without a readable timestamp cannot be proven fresh and are dropped.
func NonExpired(messages []*types.RawStoredMessage, window time.Duration, now time.Time) []*types.RawStoredMessage {
	windowSeconds := int64(window / time.Second)
	nowSeconds := now.Unix()

	out := make([]*types.RawStoredMessage, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		ts, ok := m.Message.Typed.DeclaredTimestamp()
		if !ok {
			continue
		}
		if ts+windowSeconds > nowSeconds {
			out = append(out, m)
		}
	}
	return out
}

// Apply runs both predicates in order and reports the stage counts
func Apply(messages []*types.RawStoredMessage, window time.Duration, now time.Time) ([]*types.RawStoredMessage, Counts) {
	signed := FullySigned(messages)
	fresh := NonExpired(signed, window, now)
	return fresh, Counts{
		Found:       len(messages),
		FullySigned: len(signed),
		NonExpired:  len(fresh),
	}
}
