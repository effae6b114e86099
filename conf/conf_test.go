package conf

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/gw-docprint/artifacts"
	"github.com/zeptools/gw-docprint/visual"
)

func writeConfig(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, "config")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"720h"`), &d))
	assert.Equal(t, 720*time.Hour, d.Std())
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"720h0m0s"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"-1s"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`30`), &d))
}

func TestExportConfValidate(t *testing.T) {
	assert.Error(t, (&ExportConf{}).validate())
	assert.Error(t, (&ExportConf{KVSink: true, TokenSecret: "short"}).validate())

	e := &ExportConf{OutputDir: "out", Retention: Duration(24 * time.Hour)}
	require.NoError(t, e.validate())
	assert.Equal(t, DefaultPurgeCron, e.PurgeCron)
}

func TestBaseInitAndArtifacts(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, ".core.json", `{
		"listen": "127.0.0.1:0",
		"issuer": "docprint",
		"export": {
			"output_dir": "out",
			"retention": "720h",
			"sources_dir": "sources",
			"throttle": {"api": {"burst": 5, "increment": 1, "period": "1s"}}
		}
	}`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &Core[string]{}
	require.NoError(t, c.BaseInit(root, ctx, cancel))
	assert.Equal(t, "gw-docprint", c.AppName)
	assert.Equal(t, 720*time.Hour, c.Export.Retention.Std())
	require.Contains(t, c.Export.Throttle, "api")
	assert.Equal(t, 5, c.Export.Throttle["api"].Burst)
	assert.NotNil(t, c.ActionLocks)

	require.NoError(t, c.PrepareDecorations())
	assert.NotNil(t, c.Decorations)

	arts, err := c.PrepareArtifacts()
	require.NoError(t, err)
	require.NotNil(t, arts.Files)
	assert.Equal(t, filepath.Join(root, "out"), arts.Files.Dir)
	assert.Nil(t, arts.KV)
	assert.IsType(t, &artifacts.FileSink{}, arts.Sink())
	assert.Contains(t, arts.Purgers(), "files")

	c.PrepareJobScheduler()
	require.NoError(t, c.SchedulePurge(arts))
	require.Len(t, c.JobScheduler.GetCronJobs(), 1)

	c.PrepareThrottleBucketStore(time.Minute, time.Hour)
	_, ok := c.ThrottleBucketStore.GetBucketGroup("api")
	assert.True(t, ok)
}

func TestPrepareArtifactsNeedsKV(t *testing.T) {
	c := &Core[string]{Export: ExportConf{KVSink: true, TokenSecret: "0123456789abcdef"}}
	_, err := c.PrepareArtifacts()
	assert.Error(t, err)
}

func TestLoadSources(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "sources")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "offer-1.json"),
		[]byte(`{"class":"document","root":{"tag":"div","box":{"w":800,"h":600}}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	c := &Core[string]{AppRoot: root, Export: ExportConf{SourcesDir: "sources"}}
	reg := visual.NewRegistry()
	n, err := c.LoadSources(reg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, found := reg.Lookup("offer-1")
	assert.True(t, found)
}
