package models

// Subscriber is one user waiting on a queue item or tracking a series.
// StatusMessageID is the bot message edited with progress (0 when unused),
// OriginMessageID is the user-facing message replies are attached to.
type Subscriber struct {
	ChatID          int64
	StatusMessageID int64
	OriginMessageID int64
}

// Subscribers is an ordered list of Subscriber records
type Subscribers []Subscriber

// Has reports whether chatID is already subscribed
func (s Subscribers) Has(chatID int64) bool {
	for _, sub := range s {
		if sub.ChatID == chatID {
			return true
		}
	}
	return false
}

// ChatIDs returns the chat ids in subscription order
func (s Subscribers) ChatIDs() []int64 {
	ids := make([]int64, 0, len(s))
	for _, sub := range s {
		ids = append(ids, sub.ChatID)
	}
	return ids
}

// Add appends sub unless its chat is already present, reporting whether it was added
func (s *Subscribers) Add(sub Subscriber) bool {
	if s.Has(sub.ChatID) {
		return false
	}
	*s = append(*s, sub)
	return true
}

// Remove drops the subscriber with chatID, reporting whether one was removed
func (s *Subscribers) Remove(chatID int64) bool {
	for i, sub := range *s {
		if sub.ChatID == chatID {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

// Union merges other into s, keeping the first record seen per chat
func (s Subscribers) Union(other Subscribers) Subscribers {
	out := make(Subscribers, 0, len(s)+len(other))
	for _, sub := range s {
		out.Add(sub)
	}
	for _, sub := range other {
		out.Add(sub)
	}
	return out
}
