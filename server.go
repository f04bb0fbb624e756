package cxmarket

import (
	"context"
	"errors"
	"time"

	"github.com/cryptoxpress/cxmarket/cache"
	"github.com/cryptoxpress/cxmarket/kvdb"
	"github.com/cryptoxpress/cxmarket/ledger"
	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
)

// Market wires the whole service together: registry, engine, relay and the
// ambient pieces. New panics on broken wiring, same as any misconfigured
// deployment should.
type Market struct {
	owner schema.Account

	registry *Registry
	engine   *Engine
	relay    *Relay

	wdb       *Wdb
	kv        kvdb.KeyValueDB
	cache     *cache.Cache
	events    *EventBus
	scheduler *gocron.Scheduler
	router    *gin.Engine
}

func New(
	owner schema.Account,
	boltDirPath string, useMongo bool, mongoUri string,
	mysqlDsn string, sqliteDir string, useSqlite bool,
	chainID uint64, kafkaUri string,
) *Market {
	var kv kvdb.KeyValueDB
	var err error
	if useMongo {
		kv, err = kvdb.NewMongoDB(context.Background(), mongoUri)
	} else {
		kv, err = kvdb.NewBoltDB(boltDirPath)
	}
	if err != nil {
		panic(err)
	}

	var wdb *Wdb
	if useSqlite {
		wdb = NewSqliteDb(sqliteDir)
	} else {
		wdb = NewWdb(mysqlDsn)
	}
	if err := wdb.Migrate(); err != nil {
		panic(err)
	}

	var writer *KWriter
	if kafkaUri != "" {
		writer, err = NewKWriter(MarketTopic, kafkaUri)
		if err != nil {
			panic(err)
		}
	}
	events := NewEventBus(writer)

	listingCache, err := cache.NewLocalCache(5 * time.Minute)
	if err != nil {
		panic(err)
	}

	registry, err := NewRegistry(owner, kv)
	if err != nil {
		panic(err)
	}
	engine := NewEngine(owner, registry, ledger.NewNativeBank(), wdb, listingCache, events)

	// the engine is the seeded delegate; a restart finds the grant already
	// recorded
	if err := registry.GrantInitialAuthentication(owner, engine.Address()); err != nil && !errors.Is(err, ErrInitialGrantDone) {
		panic(err)
	}

	relay := NewRelay(chainID, wdb)
	relay.RegisterTarget(engine)
	if err := engine.SetTrustedForwarder(owner, relay.Address()); err != nil {
		panic(err)
	}

	return &Market{
		owner:     owner,
		registry:  registry,
		engine:    engine,
		relay:     relay,
		wdb:       wdb,
		kv:        kv,
		cache:     listingCache,
		events:    events,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

func (m *Market) Registry() *Registry { return m.registry }
func (m *Market) Engine() *Engine     { return m.engine }
func (m *Market) Relay() *Relay       { return m.relay }

func (m *Market) Run(port string) {
	m.runJobs()
	m.runAPI(port)
}

func (m *Market) Close() {
	m.scheduler.Stop()
	m.events.Close()
	if err := m.kv.Close(); err != nil {
		log.Error("close kv store failed", "err", err)
	}
}
