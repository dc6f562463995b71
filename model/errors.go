package model

import "errors"

var (
	ErrDuplicateIdentity         = errors.New("identity already exists")
	ErrNotFound                  = errors.New("not found")
	ErrImmutableField            = errors.New("field is immutable")
	ErrInvalidIdentity           = errors.New("invalid identity")
	ErrInvalidQueryParameter     = errors.New("invalid query parameter")
	ErrUnsupportedOperation      = errors.New("operation not supported by store")
	ErrUnsupportedCredentialType = errors.New("no handler registered for credential type")
	ErrNoStoreConfigured         = errors.New("no store configured for partition")
	ErrPartitionNotEmpty         = errors.New("partition still has members")
)
