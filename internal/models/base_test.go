package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_JSON(t *testing.T) {
	var ids []ID
	require.NoError(t, json.Unmarshal([]byte(`[12, "abc", null, " 7 "]`), &ids))
	assert.Equal(t, []ID{"12", "abc", "", "7"}, ids)

	out, err := json.Marshal([]ID{"12", "abc", ""})
	require.NoError(t, err)
	assert.JSONEq(t, `[12, "abc", null]`, string(out))
}

func TestFlag_JSON(t *testing.T) {
	var values []Flag
	require.NoError(t, json.Unmarshal([]byte(`[true, false, 1, 0, "1", null]`), &values))
	assert.Equal(t, []Flag{true, false, true, false, true, false}, values)
}

func TestVerifiedUser_Identity(t *testing.T) {
	user := VerifiedUser{ID: "5", ProfID: "88", FullName: "Dana Levi"}

	assert.Equal(t, Identity{Role: RoleProfessional, UserID: "88", FullName: "Dana Levi"}, user.Identity(RoleProfessional))
	assert.Equal(t, Identity{Role: RoleClient, UserID: "5", FullName: "Dana Levi"}, user.Identity(RoleClient))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("prof")
	require.NoError(t, err)
	assert.Equal(t, RoleProfessional, role)
	assert.Equal(t, "prof", role.ChatType())
	assert.Equal(t, "client", RoleClient.ChatType())

	_, err = ParseRole("admin")
	assert.Error(t, err)
}

func TestScopes(t *testing.T) {
	assert.True(t, ScopeChat.ValidFor(RoleProfessional))
	assert.False(t, ScopeChat.ValidFor(RoleClient))
	assert.Equal(t, ScopeNew, NormalizeScope(RoleProfessional, ScopeOpen))
	assert.Equal(t, ScopeOpen, NormalizeScope(RoleClient, ""))
	assert.Equal(t, ScopeChat, BadgeScope(RoleProfessional))
	assert.Equal(t, ScopeOpen, BadgeScope(RoleClient))
}

func TestUnreadCounts(t *testing.T) {
	counts := UnreadCounts{"1": 2, "2": 0, "3": 5}
	assert.Equal(t, 7, counts.Total())
	assert.Equal(t, "request_12", ChatChannelID("12"))

	id, err := RequestIDFromChannel("messaging:request_12")
	require.NoError(t, err)
	assert.Equal(t, ID("12"), id)

	_, err = RequestIDFromChannel("messaging:support")
	assert.Error(t, err)
}
