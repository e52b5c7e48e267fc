package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/kvgo"
)

func main() {
	size := 100000

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

	keys := make([][]byte, 0, size)
	for i := 0; i < size; i++ {
		keys = append(keys, []byte(fmt.Sprintf("key-%08d", i)))
	}

	value := []byte("the quick brown fox jumps over the lazy dog")

	fmt.Println("--- Put ---")
	fmt.Println("Records:", size)

	start := time.Now()

	for _, key := range keys {
		if err := db.Put(key, value); err != nil {
			log.Fatal(err)
		}
	}

	end := time.Since(start)

	fmt.Printf("Seconds: %.2f\n\n", end.Seconds())

	printStats(db)
	fmt.Println()

	fmt.Println("--- Get ---")

	start = time.Now()

	for _, key := range keys {
		if _, err := db.Get(key); err != nil {
			log.Fatal(err)
		}
	}

	end = time.Since(start)

	fmt.Printf("Seconds: %.2f\n\n", end.Seconds())

	fmt.Println("--- Overwrite ---")

	start = time.Now()

	for _, key := range keys {
		if err := db.Put(key, value); err != nil {
			log.Fatal(err)
		}
	}

	end = time.Since(start)

	fmt.Printf("Seconds: %.2f\n\n", end.Seconds())

	printStats(db)
	fmt.Println()

	if err := db.Close(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Reopen ---")

	start = time.Now()

	db, err = kvgo.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	end = time.Since(start)

	fmt.Printf("Seconds: %.4f\n\n", end.Seconds())

	printStats(db)

	info, err := os.Stat(path)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("File size: %.1f MiB\n", float64(info.Size())/(1<<20))
}

func printStats(db *kvgo.Store) {
	stats := db.Stats()
	fmt.Printf("Keys: %d, Pages: %d, FreeListHead: %d\n", stats.Keys, stats.NumPages, stats.FreeListHead)
}
