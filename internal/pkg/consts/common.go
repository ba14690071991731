package consts

const (
	DefaultAvatarURL   = "https://via.placeholder.com/150"
	DefaultDisplayName = "User"
)

const (
	// SessionIDKey 网关会话 id 在 gin.Context 中的 key
	SessionIDKey = "session_id"
	UserIDKey    = "user_id"
	// ControllerKey 当前会话的 *service.Controller
	ControllerKey = "controller"
)
