// Package memstore provides the built-in in-memory identity store, backed
// by hashicorp/go-memdb. It supports the full capability set and serves as
// the reference semantics for other backends.
package memstore

import (
	"github.com/hashicorp/go-memdb"

	"github.com/idmkit/idmkit/config"
	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/router"
	"github.com/idmkit/idmkit/store"
)

const (
	tableIdentity   = "identity"
	tableMembership = "membership"
	tableGrant      = "grant"
	tableCredential = "credential"
	tablePartition  = "partition"
)

// noParent stands in for an absent parent or group scope; memdb string
// indexes reject empty values.
const noParent = "-"

func init() {
	router.RegisterBackend("memory", func(cfg *config.Config) (store.IdentityStore, error) {
		return New()
	})
}

type identityRow struct {
	ID           string // partition key + "|" + identity key
	PartitionKey string
	Key          string
	Kind         string
	Name         string // login for users, name for groups and roles
	ParentKey    string // parent group key, noParent for root/none
	Snapshot     model.IdentityType
}

type membershipRow struct {
	ID           string
	PartitionKey string
	MemberKey    string
	GroupKey     string
}

type grantRow struct {
	ID           string
	PartitionKey string
	MemberKey    string
	RoleKey      string
	GroupKey     string // noParent for unscoped grants
}

type credentialRow struct {
	ID           string // partition + "|" + user key + "|" + kind
	PartitionKey string
	UserKey      string
	CredKind     string
	Material     []byte
}

type partitionRow struct {
	ID   string // kind + "|" + name
	Kind string
	Name string
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableIdentity: {
				Name: tableIdentity,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"partition": {
						Name:    "partition",
						Indexer: &memdb.StringFieldIndex{Field: "PartitionKey"},
					},
					"natural": {
						Name:   "natural",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "PartitionKey"},
								&memdb.StringFieldIndex{Field: "Kind"},
								&memdb.StringFieldIndex{Field: "Name"},
								&memdb.StringFieldIndex{Field: "ParentKey"},
							},
						},
					},
				},
			},
			tableMembership: {
				Name: tableMembership,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"member": {
						Name:    "member",
						Indexer: &memdb.StringFieldIndex{Field: "MemberKey"},
					},
					"group": {
						Name:    "group",
						Indexer: &memdb.StringFieldIndex{Field: "GroupKey"},
					},
					"relation": {
						Name:   "relation",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "PartitionKey"},
								&memdb.StringFieldIndex{Field: "MemberKey"},
								&memdb.StringFieldIndex{Field: "GroupKey"},
							},
						},
					},
				},
			},
			tableGrant: {
				Name: tableGrant,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"member": {
						Name:    "member",
						Indexer: &memdb.StringFieldIndex{Field: "MemberKey"},
					},
					"role": {
						Name:    "role",
						Indexer: &memdb.StringFieldIndex{Field: "RoleKey"},
					},
					"group": {
						Name:    "group",
						Indexer: &memdb.StringFieldIndex{Field: "GroupKey"},
					},
					"relation": {
						Name:   "relation",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "PartitionKey"},
								&memdb.StringFieldIndex{Field: "MemberKey"},
								&memdb.StringFieldIndex{Field: "RoleKey"},
								&memdb.StringFieldIndex{Field: "GroupKey"},
							},
						},
					},
				},
			},
			tableCredential: {
				Name: tableCredential,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"user": {
						Name:    "user",
						Indexer: &memdb.StringFieldIndex{Field: "UserKey"},
					},
				},
			},
			tablePartition: {
				Name: tablePartition,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
}

// Store is an in-memory identity store. Safe for concurrent use; memdb
// gives lock-free readers and serialized writers.
type Store struct {
	db *memdb.MemDB
}

// New creates an empty in-memory store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Capabilities() store.CapabilitySet {
	return store.Capabilities(store.AllCapabilities()...)
}

func rowID(sctx store.Context, key string) string {
	return sctx.PartitionKey() + "|" + key
}

// naturalName returns the per-kind natural key fields of an identity.
// The variant set is closed, so the switch is exhaustive.
func naturalName(id model.IdentityType) (name, parentKey string) {
	switch v := id.(type) {
	case *model.User:
		return v.Login(), noParent
	case *model.Group:
		if p := v.ParentGroup(); p != nil {
			return v.Name(), p.Key()
		}
		return v.Name(), noParent
	case *model.Role:
		return v.Name(), noParent
	}
	return "", noParent
}

var _ store.IdentityStore = (*Store)(nil)
