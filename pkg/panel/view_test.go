package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objperms/objperms/pkg/fragment"
	"github.com/objperms/objperms/pkg/rowkey"
)

func mustRow(t *testing.T, markup string) fragment.Row {
	t.Helper()
	row, err := fragment.ParseRow(markup)
	require.NoError(t, err)
	return row
}

func TestViewUpsertReplacesInPlace(t *testing.T) {
	v := &View{}
	v.upsert(mustRow(t, `<div id="user_3" class="user"><span class="name">alice</span></div>`))
	v.upsert(mustRow(t, `<div id="group_2" class="group"><span class="name">ops</span></div>`))

	replaced := v.upsert(mustRow(t, `<div id="user_3" class="user"><span class="name">alice</span><span class="perm">admin</span></div>`))
	assert.True(t, replaced)

	rows := v.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, rowkey.UserKey(3), rows[0].Key, "replacement keeps the row's position")
	assert.Contains(t, rows[0].HTML, "admin")
	assert.Equal(t, rowkey.GroupKey(2), rows[1].Key)
}

func TestViewUpsertAppendsNewRows(t *testing.T) {
	v := &View{}
	v.upsert(mustRow(t, `<div id="user_3" class="user"></div>`))

	replaced := v.upsert(mustRow(t, `<div id="user_9" class="user"></div>`))
	assert.False(t, replaced)

	rows := v.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, rowkey.UserKey(9), rows[1].Key, "new rows go to the tail")
}

func TestViewRemove(t *testing.T) {
	v := &View{}
	v.upsert(mustRow(t, `<div id="user_3" class="user"></div>`))
	v.upsert(mustRow(t, `<div id="group_2" class="group"></div>`))

	assert.True(t, v.remove(rowkey.UserKey(3)))
	assert.False(t, v.remove(rowkey.UserKey(3)), "second removal finds nothing")

	rows := v.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, rowkey.GroupKey(2), rows[0].Key)

	_, ok := v.Row(rowkey.UserKey(3))
	assert.False(t, ok)
}

func TestViewErrors(t *testing.T) {
	v := &View{}
	v.appendError("This field is required.")
	v.appendError("That user does not exist.")

	assert.Equal(t, []string{"This field is required.", "That user does not exist."}, v.Errors())

	v.clearErrors()
	assert.Empty(t, v.Errors())
}
