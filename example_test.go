package kvgo_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/kvgo"
	"github.com/hupe1980/kvgo/blobstore"
)

// Example demonstrates basic key-value operations.
func Example() {
	dir, err := os.MkdirTemp("", "kvgo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := kvgo.Open(filepath.Join(dir, "data.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Put([]byte("greeting"), []byte("hello world")); err != nil {
		log.Fatal(err)
	}

	value, err := db.Get([]byte("greeting"))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(value))
	// Output: hello world
}

// Example_backup demonstrates snapshotting a store to blob storage and
// restoring it into a fresh file.
func Example_backup() {
	dir, err := os.MkdirTemp("", "kvgo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := kvgo.Open(filepath.Join(dir, "data.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Put([]byte("user:1"), []byte("alice")); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	store := blobstore.NewMemoryStore() // or blobstore.NewLocalStore, s3.NewStore, ...

	info, err := db.Backup(ctx, store, "nightly", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("pages:", info.Pages, "codec:", info.Compression)

	restored := filepath.Join(dir, "restored.db")
	if err := kvgo.Restore(ctx, store, "nightly", restored, nil); err != nil {
		log.Fatal(err)
	}

	db2, err := kvgo.Open(restored)
	if err != nil {
		log.Fatal(err)
	}
	defer db2.Close()

	value, err := db2.Get([]byte("user:1"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(value))
	// Output:
	// pages: 1 codec: zstd
	// alice
}

// Example_check demonstrates verifying a store's internal consistency.
func Example_check() {
	dir, err := os.MkdirTemp("", "kvgo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := kvgo.Open(filepath.Join(dir, "data.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		log.Fatal(err)
	}

	report, err := db.Check(context.Background(), nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("healthy:", report.OK())
	fmt.Println("data pages:", report.DataPages)
	// Output:
	// healthy: true
	// data pages: 1
}

// Example_readOnly demonstrates opening an existing store without write
// access.
func Example_readOnly() {
	dir, err := os.MkdirTemp("", "kvgo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "data.db")

	db, err := kvgo.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		log.Fatal(err)
	}
	if err := db.Close(); err != nil {
		log.Fatal(err)
	}

	ro, err := kvgo.Open(path, kvgo.WithReadOnly(true))
	if err != nil {
		log.Fatal(err)
	}
	defer ro.Close()

	err = ro.Put([]byte("k"), []byte("x"))
	fmt.Println(err)
	// Output: store is read-only
}
