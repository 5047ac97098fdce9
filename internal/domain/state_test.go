package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBrowserStateTTL(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("pending state lives until the verification window closes", func(t *testing.T) {
		state := PendingState(NewPendingAuthentication(Principal{Username: "sarah"}, now, 5*time.Minute))
		assert.Equal(t, KindPending, state.Kind)
		assert.NotNil(t, state.Pending)
		assert.Nil(t, state.Session)
		assert.Equal(t, 5*time.Minute, state.TTL(now))
	})

	t.Run("authenticated state lives until the session expires", func(t *testing.T) {
		pending := NewPendingAuthentication(Principal{Username: "sarah"}, now, 5*time.Minute)
		state := AuthenticatedState(PromoteToSession(pending, now, 8*time.Hour))
		assert.Equal(t, KindAuthenticated, state.Kind)
		assert.Nil(t, state.Pending)
		assert.Equal(t, 8*time.Hour, state.TTL(now))
	})

	t.Run("zero value has no lifetime", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), BrowserState{}.TTL(now))
	})
}
