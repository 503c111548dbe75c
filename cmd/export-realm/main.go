// export-realm writes a realm's full export (or a consented partial
// export, or a single-user export) to an output directory.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"

	"github.com/dustin/go-humanize"
	_ "github.com/lib/pq"

	"github.com/chatforge/realmsync/internal/blob"
	"github.com/chatforge/realmsync/internal/config"
	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/export"
	"github.com/chatforge/realmsync/internal/store"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "configuration file")
		realmSub    = flag.String("realm", "", "subdomain of the realm to export")
		outputDir   = flag.String("output", "", "output directory (required)")
		workers     = flag.Int("workers", 0, "blob download workers (overrides config)")
		consentMsg  = flag.Int64("consent-message-id", 0, "restrict to users who reacted to this message")
		userIDsFile = flag.String("exportable-user-ids", "", "file listing user IDs to restrict the export to, one per line")
		userID      = flag.Int64("user-id", 0, "export a single user instead of a realm")
	)
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("-output is required")
	}
	if *realmSub == "" && *userID == 0 {
		log.Fatal("one of -realm or -user-id is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *workers > 0 {
		cfg.Export.DownloadWorkers = *workers
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	st := store.New(db)
	exp := export.New(st, export.Options{
		MessageChunkSize:  cfg.Export.MessageChunkSize,
		UserMessageShards: cfg.Export.UserMessageShards,
	})

	if *userID != 0 {
		if err := exp.RunUserExport(ctx, *outputDir, *userID); err != nil {
			log.Fatalf("user export: %v", err)
		}
		return
	}

	realmID, ok, err := st.RealmIDBySubdomain(ctx, *realmSub)
	if err != nil {
		log.Fatalf("resolve realm: %v", err)
	}
	if !ok {
		log.Fatalf("no realm with subdomain %q", *realmSub)
	}

	var exportableIDs []int64
	if *userIDsFile != "" {
		exportableIDs, err = export.ReadUserIDFile(*userIDsFile)
		if err != nil {
			log.Fatalf("read exportable user ids: %v", err)
		}
	}

	res, err := exp.RunRealmExport(ctx, *outputDir, realmID, *consentMsg, exportableIDs)
	if err != nil {
		log.Fatalf("export: %v", err)
	}

	if err := exportBlobs(ctx, cfg, *outputDir, realmID, res); err != nil {
		log.Fatalf("blob export: %v", err)
	}
	log.Printf("exported %s: %s messages in %d chunks, %s attachments",
		*realmSub, humanize.Comma(int64(res.Messages)), res.Chunks,
		humanize.Comma(int64(len(res.Attachments))))
}

// exportBlobs copies the binary content referenced by the export: uploads,
// avatars, emoji images and realm icons, each with its manifest.
func exportBlobs(ctx context.Context, cfg *config.Config, dir string, realmID int64, res *export.RunResult) error {
	uploads, err := newBackend(ctx, cfg, cfg.Storage.S3Bucket)
	if err != nil {
		return err
	}
	avatarBucket := cfg.Storage.AvatarsBucket
	if avatarBucket == "" {
		avatarBucket = cfg.Storage.S3Bucket
	}
	avatars, err := newBackend(ctx, cfg, avatarBucket)
	if err != nil {
		return err
	}

	tr := blob.NewTransfer(uploads, cfg.Export.DownloadWorkers)
	if err := tr.ExportUploads(ctx, dir, res.Attachments); err != nil {
		return err
	}

	users := append([]domain.Record{}, res.Tables[domain.TableUserProfile]...)
	users = append(users, res.Tables[domain.TableUserProfileMirrorDummy]...)
	var gatewayBotID int64
	for _, b := range res.Tables[domain.TableUserProfileCrossRealm] {
		if b.Str("delivery_email") == domain.EmailGatewayBotEmail || b.Str("email") == domain.EmailGatewayBotEmail {
			gatewayBotID = b.Int("id")
		}
	}
	avatarTr := blob.NewTransfer(avatars, cfg.Export.DownloadWorkers)
	if err := avatarTr.ExportAvatars(ctx, dir, realmID, users, gatewayBotID); err != nil {
		return err
	}

	if err := tr.ExportEmoji(ctx, dir, realmID, res.Tables[domain.TableRealmEmoji]); err != nil {
		return err
	}
	return tr.ExportRealmIcons(ctx, dir, realmID)
}

func newBackend(ctx context.Context, cfg *config.Config, bucket string) (blob.Backend, error) {
	if cfg.Storage.Type == "s3" {
		return blob.NewS3Backend(ctx, bucket, cfg.Storage.S3Region, cfg.Storage.AWSProfile)
	}
	return blob.NewLocalBackend(cfg.Storage.LocalRoot), nil
}
