package store

// Op constants name the logical store operation for error context.
const (
	OpCreateCollection = "CreateCollection"
	OpDropCollection   = "DropCollection"
	OpDimension        = "CollectionDimension"
	OpList             = "ListCollections"
	OpInsert           = "Insert"
	OpDelete           = "Delete"
	OpSearch           = "Search"
	OpSearchLexical    = "SearchLexical"
	OpQuery            = "Query"
	OpCount            = "Count"
	OpPing             = "Ping"
)

// Error wraps an underlying error with the backend and operation name.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string { return e.Backend + " " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with backend/op context, passing nil through.
func Wrap(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Op: op, Err: err}
}
