package domain

import (
	"slices"

	dErrors "portal-gateway/pkg/domain-errors"
)

// Department names are chosen by the user at login time; each maps to exactly
// one required directory group and one dashboard upstream.
const (
	DepartmentHR    = "HR"
	DepartmentIT    = "IT Support"
	DepartmentSales = "Sales"
	DepartmentAdmin = "Admin"
)

// Departments maps department names to their required group and dashboard
// destination. The defaults mirror the portal's standing table; deployments
// may override it from config.
type Departments struct {
	groups     map[string]string
	dashboards map[string]string
	precedence []string
}

// DefaultDepartments returns the standing department table.
func DefaultDepartments() *Departments {
	return NewDepartments(
		map[string]string{
			DepartmentHR:    "hr",
			DepartmentIT:    "it_support",
			DepartmentSales: "sales",
			DepartmentAdmin: "admins",
		},
		map[string]string{
			DepartmentHR:    "http://hr-dashboard:8501",
			DepartmentIT:    "http://it-dashboard:8502",
			DepartmentSales: "http://sales-dashboard:8503",
			DepartmentAdmin: "http://admin-dashboard:8504",
		},
		[]string{DepartmentAdmin, DepartmentHR, DepartmentIT, DepartmentSales},
	)
}

// NewDepartments builds a table from explicit maps. Departments missing a
// dashboard entry are still valid for authentication but cannot be dispatched.
func NewDepartments(groups, dashboards map[string]string, precedence []string) *Departments {
	return &Departments{groups: groups, dashboards: dashboards, precedence: precedence}
}

// RequiredGroup resolves the directory group a principal must hold for the
// department. Unknown departments are a distinct, user-caused failure.
func (d *Departments) RequiredGroup(department string) (string, error) {
	group, ok := d.groups[department]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidDepartment, "invalid department selected")
	}
	return group, nil
}

// Dashboard resolves the upstream destination for a department.
func (d *Departments) Dashboard(department string) (string, error) {
	dest, ok := d.dashboards[department]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidDepartment, "invalid department selected")
	}
	return dest, nil
}

// Names lists the selectable departments, in precedence order. This is the
// same generic list shown on the login form, so returning it to unauthorized
// callers leaks nothing new.
func (d *Departments) Names() []string {
	names := make([]string, 0, len(d.groups))
	for _, name := range d.precedence {
		if _, ok := d.groups[name]; ok {
			names = append(names, name)
		}
	}
	var extras []string
	for name := range d.groups {
		if !slices.Contains(names, name) {
			extras = append(extras, name)
		}
	}
	slices.Sort(extras)
	return append(names, extras...)
}

// PrimaryDepartment picks the highest-precedence department the groups allow,
// used to route a bare "/" hit for an authenticated session.
func (d *Departments) PrimaryDepartment(groups []string) (string, bool) {
	for _, name := range d.precedence {
		group := d.groups[name]
		if slices.Contains(groups, group) {
			return name, true
		}
	}
	return "", false
}
