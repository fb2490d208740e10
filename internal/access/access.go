// Package access decides whether an identity may act on an owner's partition.
// Decisions are stateless and must be re-evaluated on every request.
package access

import (
	"errors"

	"taxdocs/internal/model"
)

var ErrForbidden = errors.New("forbidden")

// Action is the operation being authorized.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Authorize applies the owner-or-admin rule.
//
//   - write: only into the caller's own partition; there is no cross-user write.
//   - read, delete, list: the owner, or any admin.
func Authorize(id model.Identity, owner string, action Action) error {
	if id.ID == "" || owner == "" {
		return ErrForbidden
	}
	isOwner := id.ID == owner

	switch action {
	case ActionWrite:
		if isOwner {
			return nil
		}
	case ActionRead, ActionDelete, ActionList:
		if isOwner || id.IsAdmin() {
			return nil
		}
	}
	return ErrForbidden
}
