package service

import (
	"context"
	"errors"
)

// ErrPermissionDenied signals that the permission collaborator rejected the
// action. It is a policy denial, not a failure of the core's own logic.
var ErrPermissionDenied = errors.New("permission denied")

// Actor identifies who is performing an operation.
type Actor struct {
	ID   uint
	Role string
}

// Actions consulted against the permission checker.
const (
	ActionAddFeedback       = "feedback:add"
	ActionEditFeedback      = "feedback:edit"
	ActionViewFeedback      = "feedback:view"
	ActionAllocate          = "allocation:manage"
	ActionPublish           = "grade:publish"
	ActionGrantExtension    = "deadline:extend"
	ActionManageSampling    = "sampling:manage"
	ActionSubmitOnBehalf    = "submission:on_behalf"
	ActionManageCoursework  = "coursework:manage"
	ActionViewAllSubmission = "submission:view_all"
)

// PermissionChecker is the capability collaborator. The core consults it
// before acting but never reimplements policy.
type PermissionChecker interface {
	Can(ctx context.Context, actor Actor, action string, courseworkID uint) bool
}

// Platform roles understood by the role permission checker.
const (
	RoleAdmin     = "admin"
	RoleTeacher   = "teacher"
	RoleModerator = "moderator"
	RoleStudent   = "student"
)

type rolePermissionChecker struct {
	grants map[string]map[string]struct{}
}

// NewRolePermissionChecker builds the default role-based checker used when
// the host platform's capability engine is not wired in.
func NewRolePermissionChecker() PermissionChecker {
	grants := map[string][]string{
		RoleAdmin: {
			ActionAddFeedback, ActionEditFeedback, ActionViewFeedback,
			ActionAllocate, ActionPublish, ActionGrantExtension,
			ActionManageSampling, ActionSubmitOnBehalf, ActionManageCoursework,
			ActionViewAllSubmission,
		},
		RoleTeacher: {
			ActionAddFeedback, ActionEditFeedback, ActionViewFeedback,
			ActionAllocate, ActionPublish, ActionGrantExtension,
			ActionManageSampling, ActionSubmitOnBehalf, ActionViewAllSubmission,
		},
		RoleModerator: {
			ActionAddFeedback, ActionViewFeedback, ActionManageSampling,
		},
	}

	index := make(map[string]map[string]struct{}, len(grants))
	for role, actions := range grants {
		set := make(map[string]struct{}, len(actions))
		for _, action := range actions {
			set[action] = struct{}{}
		}
		index[role] = set
	}

	return &rolePermissionChecker{grants: index}
}

func (c *rolePermissionChecker) Can(_ context.Context, actor Actor, action string, _ uint) bool {
	actions, ok := c.grants[actor.Role]
	if !ok {
		return false
	}
	_, allowed := actions[action]
	return allowed
}
