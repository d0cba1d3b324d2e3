package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldUserID         = "user_id"
	FieldNotificationID = "notification_id"
	FieldServerID       = "server_id"
	FieldTransactionID  = "transaction_id"
	FieldCategory       = "category"
	FieldAmount         = "amount"
	FieldEndpoint       = "endpoint"
	FieldMethod         = "method"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldAttempt        = "attempt"
	FieldOperation      = "operation"
	FieldCount          = "count"
	FieldError          = "error"
	FieldTransport      = "transport"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentAPI       = "api"
	ComponentStore     = "store"
	ComponentStorage   = "storage"
	ComponentPush      = "push"
	ComponentSync      = "sync"
	ComponentOutbox    = "outbox"
	ComponentReports   = "reports"
	ComponentRuntime   = "runtime"
)

// Operations defines standard operation names
const (
	OpLoadUnread  = "load_unread"
	OpPush        = "push"
	OpMarkRead    = "mark_read"
	OpMarkAllRead = "mark_all_read"
	OpRemove      = "remove"
	OpClearAll    = "clear_all"
	OpHydrate     = "hydrate"
	OpSnapshot    = "snapshot"
	OpLogin       = "login"
	OpLogout      = "logout"
)
