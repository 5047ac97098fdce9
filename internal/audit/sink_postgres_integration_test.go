//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"portal-gateway/internal/audit"
	"portal-gateway/pkg/testutil/containers"
)

type PostgresSinkSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	sink     *audit.PostgresSink
}

func TestPostgresSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSinkSuite))
}

func (s *PostgresSinkSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.sink = audit.NewPostgresSink(s.postgres.DB)
	s.Require().NoError(s.sink.EnsureSchema(context.Background()))
}

func (s *PostgresSinkSuite) SetupTest() {
	_, err := s.postgres.DB.ExecContext(context.Background(), "TRUNCATE portal_audit_log")
	s.Require().NoError(err)
}

func testEvent(tag audit.Tag, username string, ts time.Time) audit.Event {
	return audit.Event{
		ID:         uuid.NewString(),
		Timestamp:  ts,
		Tag:        tag,
		Username:   username,
		Department: "HR",
		Detail:     "detail for " + username,
	}
}

func (s *PostgresSinkSuite) TestAppendAndListRecent() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	events := []audit.Event{
		testEvent(audit.TagLDAPValidated, "sarah", base),
		testEvent(audit.TagTOTPSuccess, "sarah", base.Add(time.Second)),
		testEvent(audit.TagLogout, "sarah", base.Add(2*time.Second)),
	}
	for _, event := range events {
		s.Require().NoError(s.sink.Append(ctx, event))
	}

	got, err := s.sink.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(audit.TagLogout, got[0].Tag)
	s.Equal(audit.TagTOTPSuccess, got[1].Tag)
	s.Equal("detail for sarah", got[0].Detail)
	s.True(events[2].Timestamp.Equal(got[0].Timestamp))
}

func (s *PostgresSinkSuite) TestEnsureSchemaIsIdempotent() {
	s.NoError(s.sink.EnsureSchema(context.Background()))
}

func (s *PostgresSinkSuite) TestListRecentEmpty() {
	got, err := s.sink.ListRecent(context.Background(), 10)
	s.Require().NoError(err)
	s.Empty(got)
}
