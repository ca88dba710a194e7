package model

// ThreadKind distinguishes group/team threads from direct-user threads.
type ThreadKind string

const (
	ThreadTalk ThreadKind = "talk"
	ThreadDM   ThreadKind = "dm"
)

// ThreadRef identifies a chat thread: a team talk by thread id, or a direct
// conversation by the peer's user id.
type ThreadRef struct {
	Kind ThreadKind `json:"kind"`
	ID   string     `json:"id"`
}

func (t ThreadRef) Key() string {
	return string(t.Kind) + ":" + t.ID
}
