package router

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived   int64
	MessagesDispatched int64 // Messages with at least one handler
	HandlerCalls       int64
	ParseErrors        int64 // Unparseable frames and malformed payloads
	UnknownKinds       int64
	HandlerPanics      int64
	NotificationsSent  int64
	Dropped            int64 // Known kinds with no handler registered
}
