package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostBody(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"Valid", "hello world", "hello world", false},
		{"Trimmed", "  hello  ", "hello", false},
		{"Exactly Max Length", strings.Repeat("a", 1000), strings.Repeat("a", 1000), false},
		{"Too Long", strings.Repeat("a", 1001), "", true},
		{"Empty", "", "", true},
		{"Whitespace Only", "   \n\t", "", true},
		{"Multibyte Counts Runes", strings.Repeat("é", 1000), strings.Repeat("é", 1000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PostBody(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommentBody(t *testing.T) {
	t.Parallel()
	_, err := CommentBody(strings.Repeat("a", 500))
	assert.NoError(t, err)
	_, err = CommentBody(strings.Repeat("a", 501))
	assert.Error(t, err)
	_, err = CommentBody("")
	assert.Error(t, err)
}

func TestUsername(t *testing.T) {
	t.Parallel()
	got, err := Username("  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	_, err = Username("ab")
	assert.Error(t, err)
	_, err = Username(strings.Repeat("x", 21))
	assert.Error(t, err)
}

func TestEmail(t *testing.T) {
	t.Parallel()
	got, err := Email("  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got)

	_, err = Email("invalid-email")
	assert.Error(t, err)
}

func TestIDFormats(t *testing.T) {
	t.Parallel()
	assert.True(t, IsValidID(uuid.NewString()))
	assert.False(t, IsValidID(""))
	assert.False(t, IsValidID("invalid-id"))

	assert.True(t, IsValidSubID(ulid.Make().String()))
	assert.False(t, IsValidSubID(""))
	assert.False(t, IsValidSubID("507f1f77bcf86cd799439011"))
}
