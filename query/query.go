package query

import (
	"fmt"
	"time"

	"github.com/idmkit/idmkit/model"
)

// Query is a composable predicate set over one identity variant. All
// parameters must hold for an identity to match; within one parameter every
// supplied value is required (for attributes, each required value must
// appear among the stored values).
type Query struct {
	kind   model.Kind
	order  []Parameter
	params map[Parameter][]any
}

// New creates a query targeting the given identity variant.
func New(kind model.Kind) *Query {
	return &Query{
		kind:   kind,
		params: make(map[Parameter][]any),
	}
}

// Where adds required values for a parameter. Repeated calls for the same
// parameter accumulate values.
func (q *Query) Where(p Parameter, values ...any) *Query {
	if _, ok := q.params[p]; !ok {
		q.order = append(q.order, p)
	}
	q.params[p] = append(q.params[p], values...)
	return q
}

// Kind returns the target identity variant.
func (q *Query) Kind() model.Kind { return q.kind }

// Parameters returns the parameters in the order they were first added.
func (q *Query) Parameters() []Parameter {
	out := make([]Parameter, len(q.order))
	copy(out, q.order)
	return out
}

// Values returns the required values for a parameter.
func (q *Query) Values(p Parameter) []any { return q.params[p] }

// Validate checks that every parameter is structurally valid for the target
// variant and that its values have usable types. It does not touch any
// store.
func (q *Query) Validate() error {
	switch q.kind {
	case model.KindUser, model.KindGroup, model.KindRole:
	default:
		return fmt.Errorf("%w: unknown target kind %q", model.ErrInvalidQueryParameter, q.kind)
	}

	for _, p := range q.order {
		if err := q.validateParameter(p); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) validateParameter(p Parameter) error {
	values := q.params[p]
	if len(values) == 0 {
		return fmt.Errorf("%w: %s has no values", model.ErrInvalidQueryParameter, p)
	}

	if p.IsAttribute() {
		return nil // attribute values are opaque
	}

	switch p {
	case Key:
		return q.wantValues(p, func(v any) bool { _, ok := v.(string); return ok }, "string")
	case Enabled:
		return q.wantValues(p, func(v any) bool { _, ok := v.(bool); return ok }, "bool")
	case CreatedDate, ExpiryDate:
		return q.wantValues(p, func(v any) bool { _, ok := v.(time.Time); return ok }, "time.Time")

	case MemberOf:
		// Roles cannot be group members.
		if q.kind == model.KindRole {
			return q.kindMismatch(p)
		}
		return q.wantValues(p, func(v any) bool { _, ok := v.(*model.Group); return ok }, "*model.Group")

	case HasMember:
		// Only groups have members.
		if q.kind != model.KindGroup {
			return q.kindMismatch(p)
		}
		return q.wantValues(p, isMemberValue, "user or group")

	case HasRole, HasGroupRole:
		// Matches role holders; a role cannot hold a role.
		if q.kind == model.KindRole {
			return q.kindMismatch(p)
		}
		if p == HasRole {
			return q.wantValues(p, func(v any) bool { _, ok := v.(*model.Role); return ok }, "*model.Role")
		}
		return q.wantValues(p, isGroupRoleValue, "model.GroupRole with group and role")

	case RoleOf, GroupRoleOf:
		// Matches roles granted to a member, so the target must be roles.
		if q.kind != model.KindRole {
			return q.kindMismatch(p)
		}
		return q.wantValues(p, isMemberValue, "user or group")
	}

	return fmt.Errorf("%w: unknown parameter %s", model.ErrInvalidQueryParameter, p)
}

func (q *Query) kindMismatch(p Parameter) error {
	return fmt.Errorf("%w: %s cannot target %s queries", model.ErrInvalidQueryParameter, p, q.kind)
}

func (q *Query) wantValues(p Parameter, ok func(any) bool, want string) error {
	for _, v := range q.params[p] {
		if !ok(v) {
			return fmt.Errorf("%w: %s requires %s values, got %T", model.ErrInvalidQueryParameter, p, want, v)
		}
	}
	return nil
}

func isMemberValue(v any) bool {
	switch v.(type) {
	case *model.User, *model.Group:
		return true
	}
	return false
}

func isGroupRoleValue(v any) bool {
	gr, ok := v.(model.GroupRole)
	return ok && gr.Group != nil && gr.Role != nil
}
