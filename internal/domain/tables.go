package domain

// Table names as they appear in export files. The "zerver_" prefix is part
// of the on-disk format, so the importer can consume exports produced by
// third-party converters that target the same intermediate schema.
const (
	TableRealm                   = "zerver_realm"
	TableStream                  = "zerver_stream"
	TableUserProfile             = "zerver_userprofile"
	TableUserProfileMirrorDummy  = "zerver_userprofile_mirrordummy"
	TableUserProfileCrossRealm   = "zerver_userprofile_crossrealm"
	TableUserGroup               = "zerver_usergroup"
	TableUserGroupMembership     = "zerver_usergroupmembership"
	TableRecipient               = "zerver_recipient"
	TableSubscription            = "zerver_subscription"
	TableHuddle                  = "zerver_huddle"
	TableClient                  = "zerver_client"
	TableMessage                 = "zerver_message"
	TableUserMessage             = "zerver_usermessage"
	TableScheduledMessage        = "zerver_scheduledmessage"
	TableReaction                = "zerver_reaction"
	TableUserStatus              = "zerver_userstatus"
	TableDefaultStream           = "zerver_defaultstream"
	TableRealmEmoji              = "zerver_realmemoji"
	TableRealmDomain             = "zerver_realmdomain"
	TableRealmFilter             = "zerver_realmfilter"
	TableRealmPlayground         = "zerver_realmplayground"
	TableRealmAuditLog           = "zerver_realmauditlog"
	TableRealmAuthMethod         = "zerver_realmauthenticationmethod"
	TableRealmUserDefault        = "zerver_realmuserdefault"
	TableAttachment              = "zerver_attachment"
	TableAttachmentMessages      = "zerver_attachment_messages"
	TableAttachmentScheduledMsgs = "zerver_attachment_scheduled_messages"
	TableAlertWord               = "zerver_alertword"
	TableUserHotspot             = "zerver_userhotspot"
	TableMutedTopic              = "zerver_mutedtopic"
	TableMutedUser               = "zerver_muteduser"
	TableService                 = "zerver_service"
	TableBotStorageData          = "zerver_botstoragedata"
	TableBotConfigData           = "zerver_botconfigdata"
	TableUserPresence            = "zerver_userpresence"
	TableUserActivity            = "zerver_useractivity"
	TableUserActivityInterval    = "zerver_useractivityinterval"
	TableCustomProfileField      = "zerver_customprofilefield"
	TableCustomProfileFieldValue = "zerver_customprofilefieldvalue"

	TableAnalyticsRealmCount  = "analytics_realmcount"
	TableAnalyticsUserCount   = "analytics_usercount"
	TableAnalyticsStreamCount = "analytics_streamcount"
)

// RealmTables is every table a full-realm export may contain, excluding
// messages (chunked separately), attachments and analytics (own files).
// Used by the export-side completeness warning.
var RealmTables = []string{
	TableRealm,
	TableStream,
	TableUserProfile,
	TableUserProfileMirrorDummy,
	TableUserProfileCrossRealm,
	TableUserGroup,
	TableUserGroupMembership,
	TableRecipient,
	TableSubscription,
	TableHuddle,
	TableClient,
	TableDefaultStream,
	TableRealmEmoji,
	TableRealmDomain,
	TableRealmFilter,
	TableRealmPlayground,
	TableRealmAuditLog,
	TableRealmAuthMethod,
	TableRealmUserDefault,
	TableAlertWord,
	TableUserHotspot,
	TableMutedTopic,
	TableMutedUser,
	TableService,
	TableBotStorageData,
	TableBotConfigData,
	TableUserPresence,
	TableUserActivity,
	TableUserActivityInterval,
	TableCustomProfileField,
	TableCustomProfileFieldValue,
	TableScheduledMessage,
	TableReaction,
	TableUserStatus,
}
