package consts

// 实时存储中的路径命名空间
const (
	UsersPath        = "users"
	PresencePath     = "presence"
	MessagesPath     = "messages"
	LastMessagesPath = "lastMessages"
)
