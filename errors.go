package slb

import "fmt"

// InvariantViolation is returned when the caller's parameters can't
// possibly produce a valid run, e.g. a zero chunk budget or an empty
// input file list.
type InvariantViolation struct {
	Msg string
}

func (e InvariantViolation) Error() string {
	return "invariant violation: " + e.Msg
}

// Role identifies which fleet a child process belongs to.
type Role string

const (
	RoleMapper Role = "mapper"
	RoleFolder Role = "folder"
)

// ChildFailed is returned when a mapper or folder child process exits
// with a nonzero status. It fails the whole run; there is no retry.
type ChildFailed struct {
	Role  Role
	Index int
	State string
}

func (e ChildFailed) Error() string {
	return fmt.Sprintf("%s[%d] failed: %s", e.Role, e.Index, e.State)
}
