package audit

import "time"

// Tag is the closed set of event tags the gateway emits. Downstream grep
// tooling keys off these exact strings, so they are stable.
type Tag string

const (
	TagLDAPAuthSuccess Tag = "LDAP_AUTH_SUCCESS"
	TagFailed          Tag = "FAILED"
	TagDenied          Tag = "DENIED"
	TagUserGroups      Tag = "USER_GROUPS"
	TagLDAPValidated   Tag = "LDAP_VALIDATED"
	TagTOTPSuccess     Tag = "TOTP_SUCCESS"
	TagTOTPFailed      Tag = "TOTP_FAILED"
	TagLogout          Tag = "LOGOUT"
	TagError           Tag = "ERROR"
)

// Level classifies a tag the way the line sink renders it.
func (t Tag) Level() string {
	switch t {
	case TagFailed, TagDenied, TagTOTPFailed:
		return "WARNING"
	case TagError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Event is one append-only audit record. It is transport-agnostic so sinks
// can fan out to a file, Postgres, or Kafka without caring who emitted it.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Tag        Tag       `json:"tag"`
	Username   string    `json:"username"`
	Department string    `json:"department,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}
