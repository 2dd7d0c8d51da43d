package dns

import (
	"context"
	"fmt"
)

// Record is a single DNS record as seen by the reconciler.
type Record struct {
	ID    string // provider-assigned identifier, empty for new records
	Name  string // subdomain, e.g. "www" or "@"
	Type  string // "A", "AAAA"
	Line  Line   // canonical route line
	Value string // IP address
	TTL   int    // 0 = provider default
}

// RecordList is the result of a List call.
type RecordList struct {
	Records []Record
	Total   int // total reported by the provider, may exceed len(Records)
}

// Provider is the interface that DNS providers must implement.
// Implementations translate lines with a LineCodec so callers only ever
// see canonical Line values.
type Provider interface {
	List(ctx context.Context, domain, subdomain, recordType string, pageSize int) (*RecordList, error)
	Create(ctx context.Context, domain string, record Record) (string, error)
	// Update replaces the value of the record identified by record.ID.
	// A stale ID is an error, never an implicit create.
	Update(ctx context.Context, domain string, record Record) error
	Delete(ctx context.Context, domain, recordID string) error
}

// ProviderError is returned by every Provider operation that fails.
type ProviderError struct {
	Provider string
	Op       string
	Message  string // provider-supplied message, if any
	Err      error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Errorf builds a ProviderError whose message is formatted from args.
func Errorf(provider, op, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err in a ProviderError. A nil err returns nil.
func WrapError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
