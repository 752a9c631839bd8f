package auth

import "github.com/sahilchouksey/active-classroom-api/model"

// Capability names an action that is granted per role
type Capability string

const (
	// ManageEnrollments covers listing enrollments and accepting students into groups
	ManageEnrollments Capability = "manage_enrollments"
	// ViewAllTransactions covers the full payment ledger
	ViewAllTransactions Capability = "view_all_transactions"
	// AccessAllCourses bypasses the purchased-course check
	AccessAllCourses Capability = "access_all_courses"
)

var roleCapabilities = map[string][]Capability{
	model.RoleAdmin:     {ManageEnrollments, ViewAllTransactions, AccessAllCourses},
	model.RoleModerator: {ManageEnrollments, AccessAllCourses},
	model.RoleTeacher:   {ManageEnrollments, AccessAllCourses},
	model.RoleStudent:   {},
}

// Can reports whether role holds capability. Unknown roles hold nothing.
func Can(role string, capability Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}
