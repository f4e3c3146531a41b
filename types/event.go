package types

// InvalidationNotice is the wire event exchanged between dashboard instances
// through the relay. It only names the affected key; values never travel
// across instances, each one refetches on its own.
type InvalidationNotice struct {
	Key    string `json:"key"`    // canonical ResourceKey form
	Sender string `json:"sender"` // instance id, used to skip self-notices
	Action string `json:"action"` // "invalidate", "delete", or "clear"
}

// Notice actions.
const (
	NoticeInvalidate = "invalidate"
	NoticeDelete     = "delete"
	NoticeClear      = "clear"
)
