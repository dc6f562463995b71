package store

import "fmt"

// OpError wraps a backend failure with the operation, partition and
// capability that were being attempted. The underlying cause stays
// reachable through errors.Is/As.
type OpError struct {
	Op         string
	Partition  string
	Capability Capability
	Err        error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s [partition=%s capability=%s]: %v", e.Op, e.Partition, e.Capability, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// WrapErr attaches operation context to err. Returns nil when err is nil.
func WrapErr(op string, sctx Context, cap Capability, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Partition: sctx.PartitionKey(), Capability: cap, Err: err}
}
