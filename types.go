package wirebot

import "github.com/dsonbaker/wirebot/internal/wire"

// These are type aliases onto internal/wire so that internal packages
// which must build and parse the same JSON bodies (internal/outbound,
// internal/delivery) can do so without importing this package back.

type Member = wire.Member
type Origin = wire.Origin
type Conversation = wire.Conversation
type BotCreationData = wire.BotCreationData
type EncodedPreKey = wire.EncodedPreKey
type BotCreationResponse = wire.BotCreationResponse
type ConversationEventType = wire.ConversationEventType
type MessageEventData = wire.MessageEventData
type MembershipEventData = wire.MembershipEventData
type RenameEventData = wire.RenameEventData
type MessageData = wire.MessageData
type Devices = wire.Devices
type DevicePreKeys = wire.DevicePreKeys
type MessageRequest = wire.MessageRequest
type AssetUploadResponse = wire.AssetUploadResponse

const LastPreKeyID = wire.LastPreKeyID

const (
	EventMessageAdd  = wire.EventMessageAdd
	EventMemberJoin  = wire.EventMemberJoin
	EventMemberLeave = wire.EventMemberLeave
	EventRename      = wire.EventRename
)
