package gormstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

type gormIdentity struct {
	ID           uint   `gorm:"primaryKey"`
	PartitionKey string `gorm:"uniqueIndex:idx_identity_key,priority:1;uniqueIndex:idx_identity_natural,priority:1"`
	Key          string `gorm:"column:identity_key;uniqueIndex:idx_identity_key,priority:2"`
	Kind         string `gorm:"uniqueIndex:idx_identity_natural,priority:2"`
	Name         string `gorm:"uniqueIndex:idx_identity_natural,priority:3"`
	ParentKey    string `gorm:"uniqueIndex:idx_identity_natural,priority:4"`
	Enabled      bool
	CreatedAt    time.Time
	ExpiresAt    *time.Time
}

func (gormIdentity) TableName() string { return "identities" }

// One row per attribute value. Ord preserves attribute insertion order and
// value order within an attribute.
type gormAttribute struct {
	ID           uint   `gorm:"primaryKey"`
	PartitionKey string `gorm:"index:idx_attr_owner,priority:1"`
	IdentityKey  string `gorm:"index:idx_attr_owner,priority:2"`
	Name         string `gorm:"index"`
	Ord          int
	Value        string // JSON-encoded scalar
}

func (gormAttribute) TableName() string { return "identity_attributes" }

type gormMembership struct {
	ID           uint   `gorm:"primaryKey"`
	PartitionKey string `gorm:"uniqueIndex:idx_membership,priority:1"`
	MemberKey    string `gorm:"uniqueIndex:idx_membership,priority:2;index"`
	GroupKey     string `gorm:"uniqueIndex:idx_membership,priority:3;index"`
}

func (gormMembership) TableName() string { return "group_memberships" }

// GroupKey is empty for unscoped grants.
type gormGrant struct {
	ID           uint   `gorm:"primaryKey"`
	PartitionKey string `gorm:"uniqueIndex:idx_grant,priority:1"`
	MemberKey    string `gorm:"uniqueIndex:idx_grant,priority:2;index"`
	RoleKey      string `gorm:"uniqueIndex:idx_grant,priority:3;index"`
	GroupKey     string `gorm:"uniqueIndex:idx_grant,priority:4;index"`
}

func (gormGrant) TableName() string { return "role_grants" }

type gormCredential struct {
	ID           uint   `gorm:"primaryKey"`
	PartitionKey string `gorm:"uniqueIndex:idx_credential,priority:1"`
	UserKey      string `gorm:"uniqueIndex:idx_credential,priority:2;index"`
	Kind         string `gorm:"uniqueIndex:idx_credential,priority:3"`
	Material     []byte
}

func (gormCredential) TableName() string { return "credentials" }

type gormPartition struct {
	ID   uint   `gorm:"primaryKey"`
	Kind string `gorm:"uniqueIndex:idx_partition,priority:1"`
	Name string `gorm:"uniqueIndex:idx_partition,priority:2"`
}

func (gormPartition) TableName() string { return "partitions" }

func fromIdentity(sctx store.Context, id model.IdentityType) *gormIdentity {
	name, parentKey := naturalName(id)
	return &gormIdentity{
		PartitionKey: sctx.PartitionKey(),
		Key:          id.Key(),
		Kind:         string(id.Kind()),
		Name:         name,
		ParentKey:    parentKey,
		Enabled:      id.Enabled(),
		CreatedAt:    id.CreatedDate(),
		ExpiresAt:    cloneTime(id.ExpirationDate()),
	}
}

// toIdentity materializes a stored row. Groups rebuild their parent chain
// from the key path; ancestors carry names only.
func toIdentity(sctx store.Context, row *gormIdentity, attrs []gormAttribute) (model.IdentityType, error) {
	var id model.IdentityType
	switch model.Kind(row.Kind) {
	case model.KindUser:
		id = model.NewUser(row.Name)
	case model.KindGroup:
		id = model.GroupFromPath(strings.TrimPrefix(row.Key, model.GroupKeyPrefix))
	case model.KindRole:
		id = model.NewRole(row.Name)
	default:
		return nil, fmt.Errorf("%w: stored variant %q", model.ErrInvalidIdentity, row.Kind)
	}

	id.SetEnabled(row.Enabled)
	id.SetExpirationDate(cloneTime(row.ExpiresAt))
	id.SetPartition(sctx.Partition)
	model.RestoreCreatedDate(id, row.CreatedAt)

	for _, attr := range decodeAttributes(attrs) {
		id.SetAttribute(attr)
	}
	return id, nil
}

// decodeAttributes regroups value rows, ordered by Ord, into attributes.
func decodeAttributes(rows []gormAttribute) []model.Attribute {
	var out []model.Attribute
	index := make(map[string]int)
	for _, row := range rows {
		var v any
		if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
			v = row.Value
		}
		if i, ok := index[row.Name]; ok {
			out[i].Values = append(out[i].Values, v)
			continue
		}
		index[row.Name] = len(out)
		out = append(out, model.Attribute{Name: row.Name, Values: []any{v}})
	}
	return out
}

func encodeAttributes(sctx store.Context, key string, attrs []model.Attribute) []gormAttribute {
	var rows []gormAttribute
	ord := 0
	for _, attr := range attrs {
		for _, v := range attr.Values {
			rows = append(rows, gormAttribute{
				PartitionKey: sctx.PartitionKey(),
				IdentityKey:  key,
				Name:         attr.Name,
				Ord:          ord,
				Value:        encodeValue(v),
			})
			ord++
		}
	}
	return rows
}

// encodeValue gives the canonical stored form of an attribute value; query
// matching compares against the same encoding.
func encodeValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// naturalName returns the per-kind natural key fields of an identity. The
// variant set is closed, so the switch is exhaustive.
func naturalName(id model.IdentityType) (name, parentKey string) {
	switch v := id.(type) {
	case *model.User:
		return v.Login(), ""
	case *model.Group:
		if p := v.ParentGroup(); p != nil {
			return v.Name(), p.Key()
		}
		return v.Name(), ""
	case *model.Role:
		return v.Name(), ""
	}
	return "", ""
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
