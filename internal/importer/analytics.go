package importer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/export"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// importAnalytics materializes the analytics count tables. Per-user rows
// attributed to cross-tenant system bots are dropped: those users belong
// to the shared system realm, not to this tenant's billing surface.
func (im *Importer) importAnalytics(ctx context.Context, dir string) error {
	payload := domain.TableData{}
	if err := readJSON(filepath.Join(dir, export.AnalyticsFile), &payload); err != nil {
		if os.IsNotExist(err) {
			logger.Debug("export has no analytics.json, skipping analytics")
			return nil
		}
		return err
	}

	userCounts := payload[domain.TableAnalyticsUserCount]
	kept := userCounts[:0]
	var dropped int
	for _, c := range userCounts {
		if im.systemBotOldIDs[c.Int("user")] {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	if dropped > 0 {
		logger.Info("dropped analytics rows for cross-tenant users", "count", dropped)
	}
	payload[domain.TableAnalyticsUserCount] = kept

	for _, t := range []struct {
		table    string
		category string
	}{
		{domain.TableAnalyticsRealmCount, "analytics_realmcount"},
		{domain.TableAnalyticsUserCount, "analytics_usercount"},
		{domain.TableAnalyticsStreamCount, "analytics_streamcount"},
	} {
		if err := im.allocateAndInsert(ctx, t.table, t.category, payload[t.table]); err != nil {
			return err
		}
		logger.Debug("imported analytics table", "table", t.table, "rows", len(payload[t.table]))
	}
	return nil
}
