package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yungbote/rubric-backend/internal/app"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
	"github.com/yungbote/rubric-backend/internal/vecindex"
)

// compact_index folds the embedding index WAL into its snapshot while the
// server is stopped.
func main() {
	_ = godotenv.Load()

	var path string
	var dim int
	var dryRun bool
	flag.StringVar(&path, "path", "", "index snapshot path (default: index_path from config)")
	flag.IntVar(&dim, "dim", 0, "vector dimension (default: index_dim from config)")
	flag.BoolVar(&dryRun, "dry-run", false, "report record count without compacting")
	flag.Parse()

	cfg, err := app.LoadConfig(nil)
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}
	if path == "" {
		path = cfg.IndexPath
	}
	if dim <= 0 {
		dim = cfg.IndexDim
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	idx, err := vecindex.Open(path, dim, vecindex.WithLogger(log))
	if err != nil {
		fmt.Printf("open index %s: %v\n", path, err)
		os.Exit(1)
	}
	defer idx.Close()

	if dryRun {
		fmt.Printf("[dry-run] %s holds %d records\n", path, idx.Len())
		return
	}
	if err := idx.Compact(); err != nil {
		fmt.Printf("compact failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("done; compacted %d records into %s\n", idx.Len(), path)
}
