package log

import "scadenze/internal/core"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"

	FieldRuleID        = "rule_id"
	FieldOneOffID      = "oneoff_id"
	FieldAccountID     = "account_id"
	FieldScheduledDate = "scheduled_date"
	FieldDate          = "date"
	FieldAmount        = "amount"
	FieldKind          = "kind"
	FieldFrequency     = "frequency"
	FieldWindowFrom    = "from"
	FieldWindowTo      = "to"
	FieldLedgerRef     = "ledger_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRules     = "rules"
	ComponentSchedule  = "schedule"
	ComponentPosting   = "posting"
	ComponentProcessor = "processor"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentLedger    = "ledger"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSkip     = "skip"
	OpUnskip   = "unskip"
	OpAmend    = "amend"
	OpRevert   = "revert"
	OpProject  = "project"
	OpPost     = "post"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text; a nil error adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRule adds the identifying fields of a recurrence rule.
func (f LogFields) WithRule(r core.RecurrenceRule) LogFields {
	f[FieldRuleID] = r.ID
	f[FieldFrequency] = string(r.Frequency)
	f[FieldKind] = string(r.Kind)
	f[FieldAmount] = r.Amount.String()
	f[FieldAccountID] = r.SourceAccountID
	return f
}

// WithOccurrence adds the key and display fields of one occurrence.
func (f LogFields) WithOccurrence(o core.ScheduledOccurrence) LogFields {
	f[FieldRuleID] = o.SourceID
	f[FieldScheduledDate] = o.ScheduledDate.String()
	f[FieldDate] = o.Date.String()
	f[FieldAmount] = o.SignedAmount.String()
	return f
}

// WithWindow adds the bounds of a projection window.
func (f LogFields) WithWindow(from, to core.Date) LogFields {
	f[FieldWindowFrom] = from.String()
	f[FieldWindowTo] = to.String()
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
