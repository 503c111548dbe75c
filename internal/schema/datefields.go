package schema

import (
	"fmt"

	"github.com/chatforge/realmsync/internal/domain"
)

// DateFields registers, per table, the columns holding timezone-aware
// instants. On export these are converted to UTC unix timestamps (float
// seconds); on import they are parsed back. The registry is hand
// maintained, so it is cross-checked against the known table set at init —
// an entry for an unknown table fails fast instead of silently never
// matching.
var DateFields = map[string][]string{
	domain.TableRealm:                {"date_created"},
	domain.TableStream:               {"date_created"},
	domain.TableUserProfile:          {"date_joined", "last_login", "last_reminder"},
	domain.TableMessage:              {"date_sent", "last_edit_time"},
	domain.TableScheduledMessage:     {"scheduled_timestamp"},
	domain.TableAttachment:           {"create_time"},
	domain.TableRealmAuditLog:        {"event_time"},
	domain.TableUserPresence:         {"timestamp"},
	domain.TableUserActivity:         {"last_visit"},
	domain.TableUserActivityInterval: {"start", "end"},
	domain.TableMutedTopic:           {"date_muted"},
	domain.TableMutedUser:            {"date_muted"},
	domain.TableUserStatus:           {"timestamp"},

	domain.TableAnalyticsRealmCount:  {"end_time"},
	domain.TableAnalyticsUserCount:   {"end_time"},
	domain.TableAnalyticsStreamCount: {"end_time"},
}

func init() {
	known := map[string]bool{
		domain.TableMessage:              true,
		domain.TableUserMessage:          true,
		domain.TableAttachment:           true,
		domain.TableAnalyticsRealmCount:  true,
		domain.TableAnalyticsUserCount:   true,
		domain.TableAnalyticsStreamCount: true,
		TmpStreamRecipient:               true,
		TmpUserRecipient:                 true,
		TmpHuddleRecipient:               true,
	}
	for _, t := range domain.RealmTables {
		known[t] = true
	}
	for table := range DateFields {
		if !known[table] {
			panic(fmt.Sprintf("schema: DateFields entry for unknown table %q", table))
		}
	}
}
