package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken("secret", id, "+919999999999", 7*24*time.Hour, time.Now())
	require.NoError(t, err)

	gotID, phone, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "+919999999999", phone)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", uuid.New(), "+911", time.Hour, time.Now())
	require.NoError(t, err)

	_, _, err = ParseToken("other", token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	issued := time.Now().Add(-8 * 24 * time.Hour)
	token, err := GenerateToken("secret", uuid.New(), "+911", 7*24*time.Hour, issued)
	require.NoError(t, err)

	_, _, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestNewPagination(t *testing.T) {
	pg := NewPagination("", "", 12)
	assert.Equal(t, Pagination{Page: 1, Limit: 12, Offset: 0}, pg)

	pg = NewPagination("3", "20", 12)
	assert.Equal(t, 40, pg.Offset)
	assert.Equal(t, int64(3), pg.TotalPages(41))

	pg = NewPagination("-1", "abc", 12)
	assert.Equal(t, 1, pg.Page)
	assert.Equal(t, 12, pg.Limit)
}

func TestCheckSecret(t *testing.T) {
	hash, err := HashSecret("123456", 4)
	require.NoError(t, err)
	assert.True(t, CheckSecret(hash, "123456"))
	assert.False(t, CheckSecret(hash, "654321"))
}
