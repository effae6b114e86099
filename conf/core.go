package conf

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/zeptools/gw-docprint/db"
	"github.com/zeptools/gw-docprint/db/kvdb"
	"github.com/zeptools/gw-docprint/db/kvdb/impls/redis"
	"github.com/zeptools/gw-docprint/db/sqldb"
	"github.com/zeptools/gw-docprint/db/sqldb/impls/mysql"
	"github.com/zeptools/gw-docprint/db/sqldb/impls/pgsql"
	"github.com/zeptools/gw-docprint/decor"
	"github.com/zeptools/gw-docprint/locks/keyonlylocks"
	"github.com/zeptools/gw-docprint/schedjobs"
	"github.com/zeptools/gw-docprint/sec"
	"github.com/zeptools/gw-docprint/storages/keystores"
	"github.com/zeptools/gw-docprint/svc"
	"github.com/zeptools/gw-docprint/throttle"
	"github.com/zeptools/gw-docprint/uds"
	"github.com/zeptools/gw-docprint/web"
)

// Core - common config
// B = Throttle BucketID Type _ e.g. string, int64, etc
type Core[B comparable] struct {
	AppName             string                    `json:"app_name"`
	Listen              string                    `json:"listen"`      // HTTP Server Listen IP:PORT Address
	SocketPath          string                    `json:"socket_path"` // admin unix socket, relative to AppRoot
	Issuer              string                    `json:"issuer"`      // iss of operator tokens
	Export              ExportConf                `json:"export"`
	AppRoot             string                    `json:"-"` // Filled from compiled paths
	RootCtx             context.Context           `json:"-"` // Global Context with RootCancel
	RootCancel          context.CancelFunc        `json:"-"` // CancelFunc for RootCtx
	UDSService          *uds.Service              `json:"-"` // PrepareUDSService
	JobScheduler        *schedjobs.Scheduler      `json:"-"` // PrepareJobScheduler
	WebService          *web.Service              `json:"-"` // PrepareWebService
	ThrottleBucketStore *throttle.BucketStore[B]  `json:"-"` // PrepareThrottleBucketStore
	ActionLocks         *keyonlylocks.ActionLocks `json:"-"` // one export per source at a time
	KeystoreConf        keystores.Conf            `json:"-"` // PrepareKeystores
	Verifier            *sec.Verifier             `json:"-"` // PrepareKeystores
	SigningKey          *rsa.PrivateKey           `json:"-"` // PrepareKeystores, optional
	KVDBConf            kvdb.Conf                 `json:"-"` // loadKVDBConf
	BackendKVDBClient   kvdb.Client               `json:"-"` // prepareKVDBClient
	SQLDBConfs          map[string]*sqldb.Conf    `json:"-"` // loadSQLDBConfs
	BackendSQLDBClients map[string]sqldb.Client   `json:"-"` // prepareSQLDBClients
	Decorations         *decor.Assets             `json:"-"` // PrepareDecorations

	services []svc.Service // Services to Manage
	done     chan error
}

// BaseInit - 1st step for initialization
// 1. set AppRoot
// 2. load config/.core.json file
// 3. prepare base fields
// 4. Start ShutdownSignalListener
func (c *Core[B]) BaseInit(appRoot string, rootCtx context.Context, rootCancel context.CancelFunc) error {
	c.AppRoot = appRoot
	if err := c.readConfigFile(".core.json", c); err != nil {
		return err
	}
	if c.AppName == "" {
		c.AppName = "gw-docprint"
	}
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if err := c.Export.validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	c.RootCtx = rootCtx
	c.RootCancel = rootCancel
	c.prepareDefaultFeatures()
	c.startShutdownSignalListener()
	return nil
}

func (c *Core[B]) prepareDefaultFeatures() {
	c.ActionLocks = &keyonlylocks.ActionLocks{}
}

// ConfigPath resolves name inside the config directory.
func (c *Core[B]) ConfigPath(name string) string {
	return filepath.Join(c.AppRoot, "config", name)
}

// AppPath resolves p against AppRoot unless it is absolute.
func (c *Core[B]) AppPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.AppRoot, p)
}

func (c *Core[B]) readConfigFile(name string, v any) error {
	confBytes, err := os.ReadFile(c.ConfigPath(name)) // ([]byte, error)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(confBytes, v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *Core[B]) AddService(s svc.Service) {
	log.Printf("[INFO] adding service: %s", s.Name())
	c.services = append(c.services, s)
	log.Printf("[INFO] total services: %d", len(c.services))
}

func (c *Core[B]) StartServices() error {
	c.done = make(chan error, len(c.services))
	for _, s := range c.services {
		err := s.Start()
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
		go func(s svc.Service) {
			err := <-s.Done()
			c.done <- err
		}(s) // pass the loop var to the param. otherwise, they are captured inside goroutine lazily
	}
	return nil
}

func (c *Core[B]) WaitServicesDone() error {
	for i := 0; i < len(c.services); i++ {
		if err := <-c.done; err != nil {
			return err
		}
	}
	return nil
}

func (c *Core[B]) StopServices() {
	for _, s := range c.services {
		s.Stop()
	}
}

var once sync.Once

func (c *Core[B]) startShutdownSignalListener() {
	once.Do(func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			log.Printf("[INFO] got signal [%s]. shutting down app [%s] ...", sig, c.AppName)
			c.RootCancel() // broadcast to all child services via Context.Done()
		}()
	})
	log.Printf("[INFO][CORE] shutdown signal listener started")
}

func (c *Core[B]) PrepareJobScheduler() {
	c.JobScheduler = schedjobs.NewScheduler(c.RootCtx)
	c.AddService(c.JobScheduler)
}

func (c *Core[B]) PrepareUDSService(cmdMap map[string]uds.CmdHnd) {
	sockPath := c.AppPath(c.SocketPath)
	if sockPath == "" {
		sockPath = filepath.Join(c.AppRoot, c.AppName+".sock")
	}
	c.UDSService = uds.NewService(c.RootCtx, sockPath, cmdMap)
	c.AddService(c.UDSService)
}

func (c *Core[B]) PrepareWebService(router http.Handler) {
	c.WebService = web.NewService(c.RootCtx, c.Listen, router)
	c.AddService(c.WebService)
}

// PrepareThrottleBucketStore creates the store with a bucket group per
// entry of export.throttle.
func (c *Core[B]) PrepareThrottleBucketStore(cleanupCycle time.Duration, cleanupOlderThan time.Duration) {
	c.ThrottleBucketStore = throttle.NewBucketStore[B](c.RootCtx, cleanupCycle, cleanupOlderThan)
	for group, bucketConf := range c.Export.Throttle {
		c.ThrottleBucketStore.SetBucketGroup(group, bucketConf)
	}
	c.AddService(c.ThrottleBucketStore)
}

// PrepareKeystores loads config/.keystores.json, the operator token
// verifier and, when configured, the signing key.
func (c *Core[B]) PrepareKeystores() error {
	if err := c.readConfigFile(".keystores.json", &c.KeystoreConf); err != nil {
		return err
	}
	jwks, err := sec.LoadPublicPEMKeysAsJWKS(c.AppPath(c.KeystoreConf.PublicKeyDir))
	if err != nil {
		return err
	}
	if c.Verifier, err = sec.NewVerifier(c.Issuer, jwks); err != nil {
		return err
	}
	log.Printf("[INFO][CORE] %d public key(s) loaded", len(jwks.Keys))
	if kid := c.KeystoreConf.SigningKeyID; kid != "" {
		keyPath := filepath.Join(c.AppPath(c.KeystoreConf.PrivateKeyDir), kid+"_private.pem")
		if c.SigningKey, err = sec.LoadLocalPrivatePEMKey(keyPath); err != nil {
			return fmt.Errorf("signing key %q: %w", kid, err)
		}
	}
	return nil
}

// PrepareDecorations loads config/.decorations.json and its images.
func (c *Core[B]) PrepareDecorations() error {
	decorConf, err := decor.LoadConf(c.ConfigPath(".decorations.json"))
	if errors.Is(err, os.ErrNotExist) {
		log.Println("[WARN][CORE] no .decorations.json, pages get page numbers only")
		c.Decorations = &decor.Assets{}
		return nil
	}
	if err != nil {
		return err
	}
	c.Decorations, err = decor.LoadAssets(filepath.Join(c.AppRoot, "config"), decorConf)
	return err
}

func (c *Core[B]) PrepareKVDatabase() error {
	// Load KV Database Config File
	err := c.loadKVDBConf()
	if err != nil {
		return err
	}
	if err = c.prepareKVDBClient(); err != nil {
		return err
	}
	return nil
}

func (c *Core[B]) loadKVDBConf() error {
	return c.readConfigFile(".kv-databases.json", &c.KVDBConf)
}

func (c *Core[B]) prepareKVDBClient() error {
	// Registering Supported Implementations
	redis.Register()

	client, err := kvdb.New(&c.KVDBConf)
	if err != nil {
		return err
	}
	if err = client.Init(); err != nil {
		return err
	}
	c.BackendKVDBClient = client
	return nil
}

func (c *Core[B]) loadSQLDBConfs() error {
	c.SQLDBConfs = make(map[string]*sqldb.Conf)
	return c.readConfigFile(".sql-databases.json", &c.SQLDBConfs)
}

// prepareSQLDBClients - Build & Init SQL DB Clients
// Use after loadSQLDBConfs
func (c *Core[B]) prepareSQLDBClients() error {
	c.BackendSQLDBClients = make(map[string]sqldb.Client)

	// Registering Supported Implementations
	pgsql.Register()
	mysql.Register()

	// Prepare New Clients
	for dbName, sqlDBConf := range c.SQLDBConfs {
		dbClient, err := sqldb.New(sqlDBConf.Type, sqlDBConf)
		if err != nil {
			return err
		}
		if err = dbClient.Init(); err != nil {
			return fmt.Errorf("sql database %q: %w", dbName, err)
		}
		c.BackendSQLDBClients[dbName] = dbClient
	}
	return nil
}

// PrepareSQLDatabases builds and initializes every client of
// config/.sql-databases.json.
func (c *Core[B]) PrepareSQLDatabases() error {
	// Load SQL Databases Config File
	err := c.loadSQLDBConfs()
	if err != nil {
		return err
	}
	if len(c.SQLDBConfs) == 0 {
		return nil
	}
	return c.prepareSQLDBClients()
}

func (c *Core[B]) ResourceCleanUp() {
	log.Println("[INFO] App Resource Cleaning Up...")
	if c.BackendKVDBClient != nil {
		db.CloseClient("kv database", c.BackendKVDBClient)
	}
	for name, sqlDBClient := range c.BackendSQLDBClients {
		db.CloseClient(fmt.Sprintf("%s %q", sqlDBClient.Conf().Type, name), sqlDBClient)
	}
	log.Println("[INFO] App Resource Cleanup Complete")
}
