package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUserKey(t *testing.T) {
	assert.Equal(t, "ratelimit:u-42", NewUserKey("u-42"))
	assert.NotEqual(t, NewUserKey("team:bob"), NewUserKey("team_bob"))
	assert.NotEqual(t, NewUserKey("a:b"), NewUserKey("a_b"))
}
