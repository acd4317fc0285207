/*
Package store holds the per-user in-memory chat cache and its snapshot lifecycle.

Each connected user gets one UserStore: a map of chats/groups hydrated from a
durable snapshot at creation, mutated only on the user's event-processing path,
and flushed back to the snapshot store on a fixed interval and on release.
*/
package store

// GroupIDSuffix is the server suffix carried by WhatsApp group JIDs.
const GroupIDSuffix = "@g.us"

// Message is one cached message inside a ChatRecord, relayed verbatim to the
// front-end client.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	FromMe    bool   `json:"fromMe"`
}

// ChatRecord is one chat or group's cached metadata and message history.
type ChatRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	CreatedAt    int64     `json:"createdAt"`
	Unread       int       `json:"unread"`
	Messages     []Message `json:"messages"`
}

// IsGroup reports whether the record's id belongs to the group namespace.
func (c *ChatRecord) IsGroup() bool {
	return len(c.ID) > len(GroupIDSuffix) && c.ID[len(c.ID)-len(GroupIDSuffix):] == GroupIDSuffix
}
