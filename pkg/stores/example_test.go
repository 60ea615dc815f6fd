package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
	"github.com/openfroyo/froyo-neutron/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SaveCatalog demonstrates archiving a compiled catalog.
func ExampleSQLiteStore_SaveCatalog() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	catalog := &engine.Catalog{
		Class: "neutron::server",
		Facts: engine.Facts{OSFamily: "RedHat", ProcessorCount: "4"},
		Directives: []engine.Directive{{
			Kind:    engine.KindPackage,
			Title:   "neutron",
			Package: &engine.PackageDirective{Name: "openstack-neutron", Ensure: "present"},
		}},
	}

	record, err := store.SaveCatalog(ctx, catalog, "params.cue")
	if err != nil {
		log.Fatal(err)
	}

	latest, err := store.LatestCatalog(ctx, "params.cue")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Same record: %v, directives: %d, osfamily: %s\n",
		latest.ID == record.ID, latest.DirectiveCount, latest.OSFamily)
	// Output: Same record: true, directives: 1, osfamily: RedHat
}
