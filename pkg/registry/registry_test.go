package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDefinitions = `
kinds:
  - kind: vm
    permissions:
      - name: admin
        label: Admin
        description: |
          Full control, including **granting** permissions to others.
      - name: start
      - name: power_off
        label: Power off
  - kind: cluster
    permissions:
      - admin
      - migrate
`

func TestLoad(t *testing.T) {
	reg, err := Load(strings.NewReader(sampleDefinitions))
	require.NoError(t, err)
	require.Len(t, reg.Kinds, 2)

	vm, ok := reg.Kind("vm")
	require.True(t, ok)
	assert.Equal(t, []string{"admin", "start", "power_off"}, vm.Names())

	admin, ok := vm.Perm("admin")
	require.True(t, ok)
	assert.Equal(t, "Admin", admin.DisplayLabel())

	cluster, ok := reg.Kind("cluster")
	require.True(t, ok)
	assert.Equal(t, []string{"admin", "migrate"}, cluster.Names())

	_, ok = reg.Kind("storage")
	assert.False(t, ok)
}

func TestLoadScalarPermForm(t *testing.T) {
	reg, err := Load(strings.NewReader(sampleDefinitions))
	require.NoError(t, err)

	cluster, _ := reg.Kind("cluster")
	migrate, ok := cluster.Perm("migrate")
	require.True(t, ok)
	assert.Equal(t, "migrate", migrate.Name)
	assert.Empty(t, migrate.Label)
	assert.Equal(t, "Migrate", migrate.DisplayLabel())
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name        string
		definitions string
		wantErr     string
	}{
		{
			name:        "empty document",
			definitions: ``,
			wantErr:     "no kinds defined",
		},
		{
			name: "kind defined twice",
			definitions: `
kinds:
  - kind: vm
    permissions: [admin]
  - kind: vm
    permissions: [start]
`,
			wantErr: `kind "vm" defined twice`,
		},
		{
			name: "invalid kind name",
			definitions: `
kinds:
  - kind: Virtual-Machine
    permissions: [admin]
`,
			wantErr: `invalid kind name "Virtual-Machine"`,
		},
		{
			name: "kind without permissions",
			definitions: `
kinds:
  - kind: vm
`,
			wantErr: `kind "vm" has no permissions`,
		},
		{
			name: "invalid permission name",
			definitions: `
kinds:
  - kind: vm
    permissions: [Admin]
`,
			wantErr: `invalid permission name "Admin"`,
		},
		{
			name: "permission defined twice",
			definitions: `
kinds:
  - kind: vm
    permissions: [admin, admin]
`,
			wantErr: `permission "admin" defined twice`,
		},
		{
			name:        "not yaml",
			definitions: `{{`,
			wantErr:     "parsing definitions",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.definitions))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "Admin", Perm{Name: "admin"}.DisplayLabel())
	assert.Equal(t, "Power off", Perm{Name: "power_off"}.DisplayLabel())
	assert.Equal(t, "Start VM", Perm{Name: "start", Label: "Start VM"}.DisplayLabel())
}

func TestDescriptionHTML(t *testing.T) {
	p := Perm{
		Name:        "admin",
		Description: "Full control, including **granting** permissions.",
	}
	html, err := p.DescriptionHTML()
	require.NoError(t, err)
	assert.Contains(t, string(html), "<strong>granting</strong>")

	empty, err := Perm{Name: "start"}.DescriptionHTML()
	require.NoError(t, err)
	assert.Empty(t, empty)
}
