package domain

// Recipient type discriminator values. A recipient row's type_id points
// into one of three otherwise-unrelated ID spaces depending on this value.
const (
	RecipientPersonal int64 = 1
	RecipientStream   int64 = 2
	RecipientHuddle   int64 = 3
)

// User roles, ordered by privilege.
const (
	RoleRealmOwner int64 = 100
	RoleRealmAdmin int64 = 200
	RoleModerator  int64 = 300
	RoleMember     int64 = 400
	RoleGuest      int64 = 600
)

// System group names synthesized on import when the source export predates
// explicit system groups (or came from a third-party converter).
const (
	GroupOwners         = "role:owners"
	GroupAdministrators = "role:administrators"
	GroupModerators     = "role:moderators"
	GroupMembers        = "role:members"
	GroupEveryone       = "role:everyone"
)

// RoleToSystemGroup maps a user role to the narrowest system group the user
// belongs to directly.
var RoleToSystemGroup = map[int64]string{
	RoleRealmOwner: GroupOwners,
	RoleRealmAdmin: GroupAdministrators,
	RoleModerator:  GroupModerators,
	RoleMember:     GroupMembers,
	RoleGuest:      GroupEveryone,
}

// Audit log event types consumed and produced by the import pipeline.
const (
	AuditRealmCreated        int64 = 215
	AuditRealmImported       int64 = 205
	AuditRealmDeactivated    int64 = 201
	AuditRealmReactivated    int64 = 202
	AuditSubscriptionCreated int64 = 301
	AuditUserCreated         int64 = 101
)

// Realm plan types, set at the end of an import depending on whether
// billing is enabled for this deployment.
const (
	PlanSelfHosted int64 = 1
	PlanLimited    int64 = 2
)

// FieldTypeUser marks a custom profile field whose values are lists of
// user IDs, which need element-wise remapping on import.
const FieldTypeUser int64 = 6

// Reaction / status emoji flavors. RealmEmoji reactions store a stringified
// realm-emoji foreign key in emoji_code and need remapping on import.
const (
	EmojiTypeUnicode    = "unicode_emoji"
	EmojiTypeRealmEmoji = "realm_emoji"
	EmojiTypeZulipExtra = "zulip_extra_emoji"
)

// Well-known cross-realm system bots. References to these are remapped to
// the destination server's own system-bot realm, never re-created.
var CrossRealmBotEmails = []string{
	"notification-bot@zulip.com",
	"emailgateway@zulip.com",
	"welcome-bot@zulip.com",
}

// EmailGatewayBotEmail is exempted from the avatar metadata ownership check:
// it can legitimately own blobs recorded under another realm's prefix.
const EmailGatewayBotEmail = "emailgateway@zulip.com"
