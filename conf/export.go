package conf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeptools/gw-docprint/artifacts"
	"github.com/zeptools/gw-docprint/compositor"
	"github.com/zeptools/gw-docprint/schedjobs"
	"github.com/zeptools/gw-docprint/sec"
	"github.com/zeptools/gw-docprint/throttle"
	"github.com/zeptools/gw-docprint/visual"
)

// ExportConf is the "export" object of .core.json.
type ExportConf struct {
	OutputDir      string                          `json:"output_dir"`   // file sink directory, relative to AppRoot. empty disables it
	KVSink         bool                            `json:"kv_sink"`      // keep artifacts in the kv database behind download tokens
	KVTTL          Duration                        `json:"kv_ttl"`       // default 24h
	TokenSecret    string                          `json:"token_secret"` // seals download tokens, required with kv_sink
	LedgerDB       string                          `json:"ledger_db"`    // name in .sql-databases.json, optional
	Retention      Duration                        `json:"retention"`    // 0 keeps everything
	PurgeCron      string                          `json:"purge_cron"`   // "min hour dom weekday"
	SourcesDir     string                          `json:"sources_dir"`  // {sourceId}.json regions registered at startup, optional
	MaxSourceBytes int64                           `json:"max_source_bytes"`
	Throttle       map[string]*throttle.BucketConf `json:"throttle"` // by group: "api", "download"
}

const DefaultPurgeCron = "30 3 * *"

func (e *ExportConf) validate() error {
	if e.OutputDir == "" && !e.KVSink {
		return errors.New("no artifact sink: set output_dir or kv_sink")
	}
	if e.KVSink && len(e.TokenSecret) < 16 {
		return errors.New("kv_sink needs a token_secret of at least 16 characters")
	}
	if e.Retention > 0 && e.PurgeCron == "" {
		e.PurgeCron = DefaultPurgeCron
	}
	return nil
}

// Artifacts are the sinks and ledger built from ExportConf.
type Artifacts struct {
	Files  *artifacts.FileSink // nil unless output_dir
	KV     *artifacts.KVSink   // nil unless kv_sink
	Ledger *artifacts.Ledger   // nil unless ledger_db
}

// Sink combines the configured sinks. The first one's location is reported.
func (a *Artifacts) Sink() compositor.Sink {
	var sinks artifacts.Tee
	if a.KV != nil {
		sinks = append(sinks, a.KV)
	}
	if a.Files != nil {
		sinks = append(sinks, a.Files)
	}
	if len(sinks) == 1 {
		return sinks[0]
	}
	return sinks
}

// Purgers lists what the retention job and the admin purge command clean.
// KV artifacts expire on their own.
func (a *Artifacts) Purgers() map[string]artifacts.Purger {
	purgers := make(map[string]artifacts.Purger)
	if a.Files != nil {
		purgers["files"] = a.Files
	}
	if a.Ledger != nil {
		purgers["ledger"] = a.Ledger
	}
	return purgers
}

// PrepareArtifacts builds the sinks and the ledger.
// Prerequisites: PrepareKVDatabase when kv_sink, PrepareSQLDatabases when ledger_db.
func (c *Core[B]) PrepareArtifacts() (*Artifacts, error) {
	a := &Artifacts{}
	if c.Export.OutputDir != "" {
		a.Files = &artifacts.FileSink{Dir: c.AppPath(c.Export.OutputDir)}
	}
	if c.Export.KVSink {
		if c.BackendKVDBClient == nil {
			return nil, errors.New("kv_sink: kv database not ready")
		}
		cipher, err := sec.NewXChaCha20Poly1305CipherFromSecret(c.Export.TokenSecret)
		if err != nil {
			return nil, fmt.Errorf("token_secret: %w", err)
		}
		a.KV = &artifacts.KVSink{Client: c.BackendKVDBClient, Cipher: cipher, TTL: c.Export.KVTTL.Std()}
	}
	if name := c.Export.LedgerDB; name != "" {
		client, ok := c.BackendSQLDBClients[name]
		if !ok {
			return nil, fmt.Errorf("ledger_db: no sql database %q", name)
		}
		ledger, err := artifacts.NewLedger(client)
		if err != nil {
			return nil, err
		}
		if err = ledger.EnsureSchema(c.RootCtx); err != nil {
			return nil, fmt.Errorf("ledger schema: %w", err)
		}
		a.Ledger = ledger
	}
	return a, nil
}

// LoadSources registers every {sourceId}.json region of export.sources_dir.
func (c *Core[B]) LoadSources(reg *visual.Registry) (int, error) {
	if c.Export.SourcesDir == "" {
		return 0, nil
	}
	dir := c.AppPath(c.Export.SourcesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		id, ok := strings.CutSuffix(entry.Name(), ".json")
		if entry.IsDir() || !ok || id == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return n, err
		}
		region, err := visual.ParseRegion(id, data)
		if err != nil {
			return n, err
		}
		if err = reg.Register(region); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SchedulePurge registers the retention job on JobScheduler.
func (c *Core[B]) SchedulePurge(a *Artifacts) error {
	if c.Export.Retention <= 0 {
		return nil
	}
	job, err := schedjobs.ParseCronJob("purge", c.Export.PurgeCron)
	if err != nil {
		return fmt.Errorf("purge_cron: %w", err)
	}
	retention := c.Export.Retention.Std()
	job.Task = func(ctx context.Context) error {
		var errs []error
		for name, p := range a.Purgers() {
			n, err := p.Purge(ctx, retention)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			log.Printf("[INFO][PURGE] %s: %d removed", name, n)
		}
		return errors.Join(errs...)
	}
	return c.JobScheduler.AddCronJob(job)
}
