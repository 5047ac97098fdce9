package domain

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "portal-gateway/pkg/domain-errors"
)

type DepartmentsSuite struct {
	suite.Suite
	departments *Departments
}

func TestDepartmentsSuite(t *testing.T) {
	suite.Run(t, new(DepartmentsSuite))
}

func (s *DepartmentsSuite) SetupTest() {
	s.departments = DefaultDepartments()
}

func (s *DepartmentsSuite) TestRequiredGroup() {
	s.Run("each standing department maps to its group", func() {
		cases := map[string]string{
			DepartmentHR:    "hr",
			DepartmentIT:    "it_support",
			DepartmentSales: "sales",
			DepartmentAdmin: "admins",
		}
		for department, want := range cases {
			group, err := s.departments.RequiredGroup(department)
			s.NoError(err)
			s.Equal(want, group)
		}
	})

	s.Run("unknown department is rejected with its own code", func() {
		_, err := s.departments.RequiredGroup("Engineering")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDepartment))
	})

	s.Run("department names are case sensitive", func() {
		_, err := s.departments.RequiredGroup("hr")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDepartment))
	})
}

func (s *DepartmentsSuite) TestDashboard() {
	s.Run("known department resolves its upstream", func() {
		dest, err := s.departments.Dashboard(DepartmentIT)
		s.NoError(err)
		s.Equal("http://it-dashboard:8502", dest)
	})

	s.Run("unknown department is rejected", func() {
		_, err := s.departments.Dashboard("Engineering")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDepartment))
	})

	s.Run("department without a dashboard entry is rejected", func() {
		table := NewDepartments(
			map[string]string{"Audit": "auditors"},
			map[string]string{},
			[]string{"Audit"},
		)
		_, err := table.Dashboard("Audit")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDepartment))
	})
}

func (s *DepartmentsSuite) TestNames() {
	s.Run("standing table lists in precedence order", func() {
		names := s.departments.Names()
		s.Equal([]string{DepartmentAdmin, DepartmentHR, DepartmentIT, DepartmentSales}, names)
	})

	s.Run("departments outside the precedence list follow in sorted order", func() {
		table := NewDepartments(
			map[string]string{
				DepartmentAdmin: "admins",
				"Legal":         "legal",
				"Finance":       "finance",
				"Engineering":   "engineering",
			},
			map[string]string{},
			[]string{DepartmentAdmin},
		)
		for i := 0; i < 10; i++ {
			s.Equal([]string{DepartmentAdmin, "Engineering", "Finance", "Legal"}, table.Names())
		}
	})
}

func (s *DepartmentsSuite) TestPrimaryDepartment() {
	s.Run("admin wins over other memberships", func() {
		name, ok := s.departments.PrimaryDepartment([]string{"sales", "admins", "hr"})
		s.True(ok)
		s.Equal(DepartmentAdmin, name)
	})

	s.Run("single membership resolves directly", func() {
		name, ok := s.departments.PrimaryDepartment([]string{"it_support"})
		s.True(ok)
		s.Equal(DepartmentIT, name)
	})

	s.Run("no qualifying group yields none", func() {
		_, ok := s.departments.PrimaryDepartment([]string{"contractors"})
		s.False(ok)
	})

	s.Run("empty snapshot yields none", func() {
		_, ok := s.departments.PrimaryDepartment(nil)
		s.False(ok)
	})
}
