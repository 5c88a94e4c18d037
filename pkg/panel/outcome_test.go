package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objperms/objperms/pkg/rowkey"
)

func TestDecodeOutcomeDeletion(t *testing.T) {
	o, err := DecodeOutcome("application/json", []byte(`"user_42"`))
	require.NoError(t, err)

	require.NotNil(t, o.DeletionSignal)
	assert.Equal(t, rowkey.UserKey(42), *o.DeletionSignal)
	assert.Nil(t, o.ValidationErrors)
	assert.Nil(t, o.UpsertFragment)
}

func TestDecodeOutcomeValidationErrors(t *testing.T) {
	o, err := DecodeOutcome("application/json; charset=utf-8", []byte(`{"name": "This field is required."}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"name": "This field is required."}, o.ValidationErrors)
	assert.Nil(t, o.DeletionSignal)
	assert.Nil(t, o.UpsertFragment)
}

func TestDecodeOutcomeEmptyObject(t *testing.T) {
	o, err := DecodeOutcome("application/json", []byte(`{}`))
	require.NoError(t, err)

	require.NotNil(t, o.ValidationErrors)
	assert.Empty(t, o.ValidationErrors)
}

func TestDecodeOutcomeFragment(t *testing.T) {
	markup := `<div id="user_3" class="user"><span class="name">alice</span></div>`

	o, err := DecodeOutcome("text/html; charset=utf-8", []byte(markup))
	require.NoError(t, err)

	require.NotNil(t, o.UpsertFragment)
	assert.Equal(t, rowkey.UserKey(3), o.UpsertFragment.Key)
	assert.Equal(t, "alice", o.UpsertFragment.Name)
	assert.Equal(t, markup, o.UpsertFragment.HTML)
}

func TestDecodeOutcomeRejects(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		body        string
	}{
		{"malformed deletion id", "application/json", `"admin_3"`},
		{"json null", "application/json", `null`},
		{"json array", "application/json", `[1, 2]`},
		{"json number", "application/json", `42`},
		{"non-string error values", "application/json", `{"name": ["a", "b"]}`},
		{"broken fragment", "text/html", `no row here`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeOutcome(tc.contentType, []byte(tc.body))
			assert.Error(t, err)
		})
	}
}
