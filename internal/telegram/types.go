package telegram

// Bot API payloads, trimmed to the fields the bot reads.

// Update is one item from getUpdates or a webhook delivery.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
	Caption   string `json:"caption"`
}

// User identifies the sender.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Chat identifies the conversation. Type is "private" for direct chats.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Me is the bot's own identity from getMe.
type Me struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
