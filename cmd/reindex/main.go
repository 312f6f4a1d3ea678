package main

import (
	"fmt"
	"log"
	"os"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
	"github.com/geongi-im/yolo-traffic-monitor/internal/repository/sqlite"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/storage"

	"github.com/akamensky/argparse"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Printf("⚠️  Ignoring .env: %v", err)
	}
	cfg := config.Load()

	parser := argparse.NewParser("reindex", "Rebuild the results catalog from the analyzed_*.jpg files on disk")
	outputDir := parser.String("o", "output", &argparse.Options{Help: "Directory containing analysis results", Default: cfg.OutputDirectory})
	dbPath := parser.String("d", "db", &argparse.Options{Help: "Catalog database path", Default: cfg.DatabasePath})
	camera := parser.Int("c", "camera", &argparse.Options{Help: "Camera id to attribute the files to", Default: cfg.CCTVID})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	fmt.Printf("Indexing results from %s into %s\n", *outputDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewArtifactRepository(db)

	stats, err := storage.Reindex(*outputDir, *camera, repo)
	if err != nil {
		log.Fatalf("Reindex failed: %v", err)
	}

	if stats.Indexed == 0 {
		fmt.Println("No results found to index")
	} else {
		fmt.Printf("✅ Indexed %d results\n", stats.Indexed)
	}
	for _, name := range stats.Skipped {
		fmt.Printf("⚠️  Skipped %s (unrecognized name)\n", name)
	}

	total, err := repo.GetTotalCount(&dto.ArtifactFilter{})
	if err == nil {
		size, _ := repo.GetTotalSize()
		fmt.Printf("\n📊 Catalog Statistics:\n")
		fmt.Printf("   Total results: %d\n", total)
		fmt.Printf("   Total size: %d bytes\n", size)
	}
}
