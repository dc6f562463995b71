package model

// PartitionKind distinguishes the two partition variants.
type PartitionKind string

const (
	PartitionRealm PartitionKind = "realm"
	PartitionTier  PartitionKind = "tier"
)

// DefaultRealmName is the realm identities belong to when no partition is
// selected explicitly.
const DefaultRealmName = "default"

// Partition is an isolation boundary for identities. Every identity belongs
// to exactly one partition: either a top-level Realm or a nested Tier.
type Partition interface {
	// Key returns the unique identifier of the partition, prefixed with
	// its kind (e.g. "REALM://default").
	Key() string

	// Name returns the realm name or tier id.
	Name() string

	PartitionKind() PartitionKind
}

// Realm is a top-level partition.
type Realm struct {
	name string
}

func NewRealm(name string) *Realm {
	return &Realm{name: name}
}

// DefaultRealm returns the built-in default realm.
func DefaultRealm() *Realm {
	return NewRealm(DefaultRealmName)
}

func (r *Realm) Key() string                  { return "REALM://" + r.name }
func (r *Realm) Name() string                 { return r.name }
func (r *Realm) PartitionKind() PartitionKind { return PartitionRealm }

// Tier is a nested, application-specific partition.
type Tier struct {
	id string
}

func NewTier(id string) *Tier {
	return &Tier{id: id}
}

func (t *Tier) Key() string                  { return "TIER://" + t.id }
func (t *Tier) Name() string                 { return t.id }
func (t *Tier) PartitionKind() PartitionKind { return PartitionTier }
