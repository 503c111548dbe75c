// import-realm materializes a previously exported realm into a fresh
// destination realm under a new subdomain. A distributed lock on the
// subdomain keeps two imports from racing for it.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/chatforge/realmsync/internal/blob"
	"github.com/chatforge/realmsync/internal/config"
	"github.com/chatforge/realmsync/internal/importer"
	"github.com/chatforge/realmsync/internal/pkg/distlock"
	"github.com/chatforge/realmsync/internal/push"
	"github.com/chatforge/realmsync/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "configuration file")
		inputDir   = flag.String("input", "", "export directory to import (required)")
		subdomain  = flag.String("subdomain", "", "destination subdomain (required)")
		processes  = flag.Int("processes", 0, "avatar thumbnail workers (overrides config)")
	)
	flag.Parse()

	if *inputDir == "" || *subdomain == "" {
		log.Fatal("-input and -subdomain are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *processes > 0 {
		cfg.Import.ThumbnailWorkers = *processes
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}
	const lockTTL = 30 * time.Minute
	lock := distlock.New(redisClient, db, "import:"+*subdomain, lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Fatalf("lock: %v", err)
	}
	if !acquired {
		log.Fatalf("another import of %q is already running", *subdomain)
	}
	defer lock.Release(context.Background())

	// A Redis lock expires on its own; keep pushing the TTL out so an
	// import outlasting it does not lose the subdomain to a second run.
	if rl, ok := lock.(*distlock.RedisLock); ok {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			ticker := time.NewTicker(lockTTL / 3)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					if err := rl.Extend(ctx, lockTTL); err != nil {
						log.Printf("lock extend: %v", err)
					}
				}
			}
		}()
	}

	uploads, err := newBackend(ctx, cfg, cfg.Storage.S3Bucket)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	avatarBucket := cfg.Storage.AvatarsBucket
	if avatarBucket == "" {
		avatarBucket = cfg.Storage.S3Bucket
	}
	avatars, err := newBackend(ctx, cfg, avatarBucket)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	opts := importer.Options{
		Subdomain:        *subdomain,
		ThumbnailWorkers: cfg.Import.ThumbnailWorkers,
		BillingEnabled:   cfg.Billing.Enabled,
		AvatarTransfer:   blob.NewTransfer(avatars, cfg.Export.DownloadWorkers),
	}
	if cfg.Push.BouncerURL != "" {
		opts.Announcer = push.New(cfg.Push.BouncerURL)
	}

	im := importer.New(store.New(db), blob.NewTransfer(uploads, cfg.Export.DownloadWorkers), opts)
	if err := im.Run(ctx, *inputDir); err != nil {
		log.Fatalf("import: %v", err)
	}
	log.Printf("imported %s as realm %d", *inputDir, im.NewRealmID())
}

func newBackend(ctx context.Context, cfg *config.Config, bucket string) (blob.Backend, error) {
	if cfg.Storage.Type == "s3" {
		return blob.NewS3Backend(ctx, bucket, cfg.Storage.S3Region, cfg.Storage.AWSProfile)
	}
	return blob.NewLocalBackend(cfg.Storage.LocalRoot), nil
}
