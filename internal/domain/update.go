package domain

// Message is an inbound chat message, decoupled from the transport library.
type Message struct {
	ChatID    int64
	MessageID int
	FromID    int64
	FromName  string
	Text      string
	IsGroup   bool
}

// Callback is an inline-button press.
type Callback struct {
	ID          string
	Data        string
	ChatID      int64
	MessageID   int
	MessageText string
	FromID      int64
	FromName    string
}

// Update wraps one inbound transport event; exactly one field is set.
type Update struct {
	Message  *Message
	Callback *Callback
}
