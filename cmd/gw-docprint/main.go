// Command gw-docprint serves the document export api and its admin socket.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/zeptools/gw-docprint/compositor"
	"github.com/zeptools/gw-docprint/conf"
	"github.com/zeptools/gw-docprint/decor"
	"github.com/zeptools/gw-docprint/flattener"
	"github.com/zeptools/gw-docprint/handlers"
	"github.com/zeptools/gw-docprint/normalizer"
	"github.com/zeptools/gw-docprint/raster"
	"github.com/zeptools/gw-docprint/routing"
	"github.com/zeptools/gw-docprint/storages/keystores"
	"github.com/zeptools/gw-docprint/visual"
)

func main() {
	appRootFlag := flag.String("root", "", "app root holding config/ (default: the executable's directory)")
	noAuth := flag.Bool("no-auth", false, "serve the api without operator tokens")
	flag.Parse()

	appRoot, err := resolveAppRoot(*appRootFlag)
	if err != nil {
		log.Fatalf("[FATAL] app root: %v", err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	core := &conf.Core[string]{}
	if err = core.BaseInit(appRoot, rootCtx, rootCancel); err != nil {
		log.Fatalf("[FATAL] init: %v", err)
	}
	defer core.ResourceCleanUp()

	if err = run(core, *noAuth); err != nil {
		log.Printf("[ERROR] %v", err)
		core.ResourceCleanUp()
		os.Exit(1)
	}
}

func resolveAppRoot(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func run(core *conf.Core[string], noAuth bool) error {
	if core.Export.KVSink {
		if err := core.PrepareKVDatabase(); err != nil {
			return err
		}
	}
	if core.Export.LedgerDB != "" {
		if err := core.PrepareSQLDatabases(); err != nil {
			return err
		}
	}
	if !noAuth {
		if err := core.PrepareKeystores(); err != nil {
			return err
		}
	}
	if err := core.PrepareDecorations(); err != nil {
		return err
	}
	arts, err := core.PrepareArtifacts()
	if err != nil {
		return err
	}

	registry := visual.NewRegistry()
	n, err := core.LoadSources(registry)
	if err != nil {
		return err
	}
	log.Printf("[INFO] %d source(s) preloaded", n)

	painter := raster.NewPainter()
	comp := &compositor.Compositor{
		Registry:  registry,
		Documents: normalizer.New(painter),
		Schedules: flattener.New(painter),
		Assets:    core.Decorations,
		Sink:      arts.Sink(),
	}
	if comp.Assets == nil {
		comp.Assets = &decor.Assets{}
	}
	if arts.Ledger != nil {
		comp.Ledger = arts.Ledger
	}

	core.PrepareThrottleBucketStore(time.Minute, 10*time.Minute)
	core.PrepareJobScheduler()
	if err = core.SchedulePurge(arts); err != nil {
		return err
	}

	api := &handlers.API{
		Registry:       registry,
		Exporter:       comp,
		Locks:          core.ActionLocks,
		Verifier:       core.Verifier,
		Throttle:       core.ThrottleBucketStore,
		MaxSourceBytes: core.Export.MaxSourceBytes,
	}
	if arts.KV != nil {
		api.Artifacts = arts.KV
	}
	if arts.Ledger != nil {
		api.Ledger = arts.Ledger
	}
	router := routing.NewBaseRouter()
	api.Routes(router)
	core.PrepareWebService(router)

	admin := &handlers.Admin{
		Registry: registry,
		Exporter: comp,
		Locks:    core.ActionLocks,
		Purgers:  arts.Purgers(),
	}
	if arts.Ledger != nil {
		admin.Ledger = arts.Ledger
	}
	if core.SigningKey != nil {
		admin.Signer = &handlers.TokenSigner{
			Issuer: core.Issuer,
			KeyID:  core.KeystoreConf.SigningKeyID,
			Key:    core.SigningKey,
		}
	}
	if !noAuth {
		admin.KeyDirs = &keystores.Conf{
			PrivateKeyDir: core.AppPath(core.KeystoreConf.PrivateKeyDir),
			PublicKeyDir:  core.AppPath(core.KeystoreConf.PublicKeyDir),
		}
	}
	core.PrepareUDSService(admin.Commands())

	if err = core.StartServices(); err != nil {
		core.StopServices()
		core.RootCancel()
		return err
	}
	log.Printf("[INFO] %s started", core.AppName)
	err = core.WaitServicesDone()
	core.RootCancel()
	return err
}
