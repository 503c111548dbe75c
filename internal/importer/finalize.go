package importer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// finalize sets the destination's plan type, restores the realm's
// activation state, records the realm-imported audit event with a
// per-role seat snapshot, and announces the realm to the push bouncer.
// The announcement is fire and forget: its failure never fails the run.
func (im *Importer) finalize(ctx context.Context, data domain.TableData) error {
	plan := domain.PlanSelfHosted
	if im.opts.BillingEnabled {
		plan = domain.PlanLimited
	}
	if err := im.store.SetColumn(ctx, domain.TableRealm, "plan_type", im.newRealmID, plan); err != nil {
		return err
	}
	if err := im.store.SetColumn(ctx, domain.TableRealm, "deactivated", im.newRealmID, im.sourceWasDeactivated); err != nil {
		return err
	}

	snapshot, err := json.Marshal(roleCounts(data[domain.TableUserProfile]))
	if err != nil {
		return err
	}
	if err := im.insertAuditEvent(ctx, domain.Record{
		"realm_id":   im.newRealmID,
		"event_type": domain.AuditRealmImported,
		"event_time": time.Now().UTC(),
		"backfilled": false,
		"extra_data": string(snapshot),
	}); err != nil {
		return err
	}

	if im.opts.Announcer != nil {
		if err := im.opts.Announcer.AnnounceRealm(ctx, im.newRealmID, im.opts.Subdomain); err != nil {
			logger.Warn("push bouncer announcement failed",
				"realm_id", im.newRealmID, "error", err.Error())
		}
	}
	return nil
}

// roleCounts snapshots how many imported users hold each role, keyed by
// the numeric role value. Billing reconciles seats against this.
func roleCounts(users []domain.Record) map[string]int {
	counts := make(map[string]int)
	for _, u := range users {
		role := u.Int("role")
		if role == 0 {
			role = domain.RoleMember
		}
		counts[jsonRoleKey(role)]++
	}
	return counts
}

func jsonRoleKey(role int64) string {
	switch role {
	case domain.RoleRealmOwner:
		return "realm_owner"
	case domain.RoleRealmAdmin:
		return "realm_admin"
	case domain.RoleModerator:
		return "moderator"
	case domain.RoleGuest:
		return "guest"
	default:
		return "member"
	}
}
