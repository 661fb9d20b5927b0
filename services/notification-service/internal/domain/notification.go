package domain

import "time"

// Notification is a feed item produced from customer events. VisibleTo is
// copied from the triggering event so the feed obeys the same visibility
// rules as the records it describes. Read state is per user: ReadBy holds
// every user who has acknowledged the item.
type Notification struct {
	ID         string
	CustomerID string
	TenantID   string
	Title      string
	Body       string
	VisibleTo  []string
	ReadBy     []string
	CreatedAt  time.Time
}

// IsReadBy reports whether userID has already acknowledged the item.
func (n Notification) IsReadBy(userID string) bool {
	for _, id := range n.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
