package dto

type SendMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}

// Receipt is an out-of-band delivery/read status update for one message.
// UpTo marks every own message at or before MessageID in thread order.
type Receipt struct {
	ThreadKey string `json:"thread_key"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"` // "delivered" or "read"
	UpTo      bool   `json:"up_to,omitempty"`
}
