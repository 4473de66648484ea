package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Bundle{Name: "core"}))

	b, ok := r.Resolve("core")
	require.True(t, ok)
	require.Equal(t, "core", b.Name)

	_, ok = r.Resolve("missing")
	require.False(t, ok)
}

func TestRegistry_RejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Bundle{Name: "core"}))
	require.Error(t, r.Register(Bundle{Name: "core"}))
}

func TestRegistry_ListSortedByName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Bundle{Name: "zeta"}))
	require.NoError(t, r.Register(Bundle{Name: "alpha"}))

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "alpha", list[0].Name)
	require.Equal(t, "zeta", list[1].Name)
}

func TestPruneDuplicateBundles(t *testing.T) {
	bundles := []Bundle{
		{Name: "a", ModuleName: "pkg", ObjectName: "Tasks"},
		{Name: "a", ModuleName: "pkg", ObjectName: "Tasks"},
		{Name: "b", ModuleName: "pkg2", ObjectName: "Tasks"},
	}
	pruned := PruneDuplicateBundles(bundles)
	require.Len(t, pruned, 2)
}

func TestDiscoverPackageModules(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "task_a.go"), []byte("package sub"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "_private.go"), []byte("package sub"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "task_b.go"), []byte("package vendor"), 0o644))

	modules, err := DiscoverPackageModules(root, root)
	require.NoError(t, err)
	require.Contains(t, modules, "sub.task_a")
	require.NotContains(t, modules, "sub._private")
	require.NotContains(t, modules, "vendor.task_b")
}

func TestFindTaskBundles_EnvDirectory(t *testing.T) {
	extra := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(extra, "extra_task.go"), []byte("package extra"), 0o644))
	t.Setenv(TasksDirectoryEnvVar, extra)

	reg := NewRegistry()
	modules, err := FindTaskBundles(reg, nil)
	require.NoError(t, err)
	require.Contains(t, modules, "extra_task")
}
