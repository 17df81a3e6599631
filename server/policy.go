package main

// Action names a guarded operation.
type Action string

const (
	ActCreateWorkspace  Action = "createWorkspace"
	ActUpdateWorkspace  Action = "updateWorkspace"
	ActDeleteWorkspace  Action = "deleteWorkspace"
	ActManageMembers    Action = "manageMembers"
	ActDeleteTask       Action = "deleteTask"
	ActDeleteUser       Action = "deleteUser"
	ActManageUsers      Action = "manageUsers"
	ActViewAnalytics    Action = "viewAnalytics"
	ActCreateTask       Action = "createTask"
	ActUpdateTask       Action = "updateTask"
	ActAddComment       Action = "addComment"
	ActUploadAttachment Action = "uploadAttachment"
	ActUploadFile       Action = "uploadFile"
	ActDeleteFile       Action = "deleteFile"
)

// Rule is what an action demands beyond a valid session.
type Rule struct {
	RequireAdmin bool
	// RequireMembership applies to workers; admins see every workspace.
	RequireMembership bool
}

// NonMemberFilter decides what a worker gets when filtering tasks by a
// workspace they do not belong to.
type NonMemberFilter int

const (
	FilterEmpty NonMemberFilter = iota
	FilterForbidden
)

type Policy struct {
	Rules     map[Action]Rule
	NonMember NonMemberFilter
}

// DefaultPolicy: admin-only structure and people management; task work open to
// any authenticated user regardless of membership.
func DefaultPolicy() Policy {
	admin := Rule{RequireAdmin: true}
	open := Rule{}
	return Policy{
		Rules: map[Action]Rule{
			ActCreateWorkspace:  admin,
			ActUpdateWorkspace:  admin,
			ActDeleteWorkspace:  admin,
			ActManageMembers:    admin,
			ActDeleteTask:       admin,
			ActDeleteUser:       admin,
			ActManageUsers:      admin,
			ActViewAnalytics:    admin,
			ActDeleteFile:       admin,
			ActCreateTask:       open,
			ActUpdateTask:       open,
			ActAddComment:       open,
			ActUploadAttachment: open,
			ActUploadFile:       open,
		},
		NonMember: FilterEmpty,
	}
}

// MembershipPolicy is DefaultPolicy with task work limited to workspace members
// and non-member filters denied outright.
func MembershipPolicy() Policy {
	p := DefaultPolicy()
	member := Rule{RequireMembership: true}
	for _, a := range []Action{ActCreateTask, ActUpdateTask, ActAddComment, ActUploadAttachment} {
		p.Rules[a] = member
	}
	p.NonMember = FilterForbidden
	return p
}

// Decide returns nil when the principal may perform the action. isMember is only
// consulted for rules that require membership. Unknown actions are denied.
func (p Policy) Decide(pr Principal, action Action, isMember bool) error {
	if pr.UserID == "" {
		return ErrUnauthenticated
	}
	rule, ok := p.Rules[action]
	if !ok {
		return ErrForbidden
	}
	if pr.Role == RoleAdmin {
		return nil
	}
	if rule.RequireAdmin {
		return ErrForbidden
	}
	if rule.RequireMembership && !isMember {
		return ErrForbidden
	}
	return nil
}

func (p Policy) needsMembership(action Action) bool {
	return p.Rules[action].RequireMembership
}
