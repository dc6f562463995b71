package store

import "github.com/idmkit/idmkit/model"

// Invocation carries ambient per-call data supplied by the embedding
// application, such as the caller identity. The core threads it through
// store calls without interpreting it.
type Invocation struct {
	Caller string
	Values map[string]any
}

// InvocationContextFactory produces the Invocation attached to each store
// call.
type InvocationContextFactory interface {
	NewInvocation() *Invocation
}

// InvocationFactoryFunc adapts a function to InvocationContextFactory.
type InvocationFactoryFunc func() *Invocation

func (f InvocationFactoryFunc) NewInvocation() *Invocation { return f() }

// NopInvocationFactory returns empty invocations.
func NopInvocationFactory() InvocationContextFactory {
	return InvocationFactoryFunc(func() *Invocation { return &Invocation{} })
}

// Context is the per-call record threaded through every store operation.
// It is immutable for the duration of a call; switching partitions produces
// a new Context rather than mutating shared state.
type Context struct {
	Partition  model.Partition
	Invocation *Invocation
}

// NewContext builds a call context for the given partition.
func NewContext(p model.Partition, inv *Invocation) Context {
	return Context{Partition: p, Invocation: inv}
}

// PartitionKey returns the partition's key, or "" when unset.
func (c Context) PartitionKey() string {
	if c.Partition == nil {
		return ""
	}
	return c.Partition.Key()
}
