package mongodb

const (
	MessagesCollection      = "helpline_messages"       // Relayed and automated messages
	StatusChangesCollection = "helpline_status_changes" // Session state transitions
)
