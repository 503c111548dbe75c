package export

import (
	"context"
	"path/filepath"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
	"github.com/chatforge/realmsync/internal/schema"
)

// exportAnalytics writes analytics.json with the three count tables,
// restricted to the realm. Counts attributed to system bots live in a
// different realm and are excluded by the realm filter itself.
func (e *Exporter) exportAnalytics(ctx context.Context, dir string, ec *schema.Context) error {
	payload := domain.TableData{}
	for _, t := range []string{
		domain.TableAnalyticsRealmCount,
		domain.TableAnalyticsUserCount,
		domain.TableAnalyticsStreamCount,
	} {
		rows, err := e.store.FetchByFK(ctx, t, "realm_id", []int64{ec.RealmID}, nil)
		if err != nil {
			return err
		}
		normalizeTable(t, rows, nil)
		payload[t] = rows
		logger.Debug("exported analytics table", "table", t, "rows", len(rows))
	}
	return writeJSONFile(filepath.Join(dir, AnalyticsFile), payload)
}
