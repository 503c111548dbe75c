package schema

import "github.com/chatforge/realmsync/internal/domain"

// ForeignKeys registers, per table, the base names of foreign-key columns.
// The store reads them as "<name>_id"; export files carry the bare name,
// and the importer renames back to "<name>_id" while remapping. Recipient
// type_id columns are absent here: they are polymorphic and remapped by
// discriminator instead.
var ForeignKeys = map[string][]string{
	domain.TableRealm: {
		"notifications_stream", "signup_notifications_stream",
		"moderation_request_channel",
		"can_create_public_channel_group", "can_create_private_channel_group",
	},
	domain.TableStream:                  {"realm", "creator", "can_administer_channel_group"},
	domain.TableUserProfile:             {"realm", "bot_owner", "default_sending_stream", "default_events_register_stream", "recipient"},
	domain.TableUserGroup:               {"realm", "can_mention_group"},
	domain.TableUserGroupMembership:     {"user_group", "user_profile"},
	domain.TableSubscription:            {"user_profile", "recipient"},
	domain.TableDefaultStream:           {"realm", "stream"},
	domain.TableRealmEmoji:              {"realm", "author"},
	domain.TableRealmDomain:             {"realm"},
	domain.TableRealmFilter:             {"realm"},
	domain.TableRealmPlayground:         {"realm"},
	domain.TableRealmAuthMethod:         {"realm"},
	domain.TableRealmUserDefault:        {"realm"},
	domain.TableRealmAuditLog:           {"realm", "acting_user", "modified_user", "modified_stream"},
	domain.TableMessage:                 {"sender", "recipient", "sending_client"},
	domain.TableUserMessage:             {"user_profile", "message"},
	domain.TableScheduledMessage:        {"sender", "recipient", "sending_client", "realm"},
	domain.TableReaction:                {"user_profile", "message"},
	domain.TableUserStatus:              {"user_profile", "client"},
	domain.TableAttachment:              {"owner", "realm"},
	domain.TableAttachmentMessages:      {"attachment", "message"},
	domain.TableAttachmentScheduledMsgs: {"attachment", "scheduledmessage"},
	domain.TableAlertWord:               {"user_profile", "realm"},
	domain.TableUserHotspot:             {"user"},
	domain.TableMutedTopic:              {"user_profile", "stream", "recipient"},
	domain.TableMutedUser:               {"user_profile", "muted_user"},
	domain.TableService:                 {"user_profile"},
	domain.TableBotStorageData:          {"bot_profile"},
	domain.TableBotConfigData:           {"bot_profile"},
	domain.TableUserPresence:            {"user_profile", "client", "realm"},
	domain.TableUserActivity:            {"user_profile", "client"},
	domain.TableUserActivityInterval:    {"user_profile"},
	domain.TableCustomProfileField:      {"realm"},
	domain.TableCustomProfileFieldValue: {"user_profile", "field"},
	domain.TableAnalyticsRealmCount:     {"realm"},
	domain.TableAnalyticsUserCount:      {"realm", "user"},
	domain.TableAnalyticsStreamCount:    {"realm", "stream"},
}
