package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldKind        = "kind"
	FieldID          = "id"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldAmount      = "amount"
	FieldCategory    = "category"
	FieldSource      = "source"
	FieldPath        = "path"
	FieldLocation    = "location"
	FieldExpenses    = "expenses"
	FieldIncomes     = "incomes"
	FieldDuration    = "duration_ms"
	FieldBackupDate  = "backup_date"
	FieldBackend     = "backend"
	FieldRoutingKey  = "routing_key"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentCLI        = "cli"
	ComponentLedger     = "ledger"
	ComponentStorage    = "storage"
	ComponentCategories = "categories"
	ComponentAggregator = "aggregator"
	ComponentBackup     = "backup"
	ComponentAMQP       = "amqp"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpAppend   = "append"
	OpExport   = "export"
	OpImport   = "import"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPeriod adds the month and year a record or view belongs to.
func (f LogFields) WithPeriod(month, year int) LogFields {
	f[FieldMonth] = month
	f[FieldYear] = year
	return f
}

// WithRecord adds the identifying fields of a ledger record.
func (f LogFields) WithRecord(kind string, id int64, amount float64) LogFields {
	f[FieldKind] = kind
	f[FieldID] = id
	f[FieldAmount] = amount
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
