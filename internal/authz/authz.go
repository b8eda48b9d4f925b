// Package authz holds the role-permission table consulted before any
// privileged mutation. It is a pure capability check with no state.
package authz

import "github.com/bookbazaar/bookbazaar/internal/domain"

type Action string

const (
	ActionViewBooks    Action = "books:view"
	ActionAddBook      Action = "books:add"
	ActionDeleteBook   Action = "books:delete"
	ActionEditStock    Action = "books:edit-stock"
	ActionCreateOrder  Action = "orders:create"
	ActionViewAllOrder Action = "orders:view-all"
	ActionViewSales    Action = "sales:view"
	ActionManageUsers  Action = "users:manage"
)

// permissions maps each role to its allowed actions. Admin is handled as a
// wildcard in Allowed rather than enumerated here.
var permissions = map[domain.Role][]Action{
	domain.RoleSeller: {
		ActionViewBooks,
		ActionAddBook,
		ActionDeleteBook,
		ActionViewSales,
	},
	domain.RoleBuyer: {
		ActionViewBooks,
		ActionCreateOrder,
	},
}

// Allowed reports whether role may perform action.
func Allowed(role domain.Role, action Action) bool {
	if role == domain.RoleAdmin {
		return true
	}
	for _, a := range permissions[role] {
		if a == action {
			return true
		}
	}
	return false
}
