package dto

// SelectReq 打开与某个联系人的会话
type SelectReq struct {
	CounterpartID string `json:"counterpart_id" binding:"required"`
}

// MessageBodyReq 发送/编辑共用, 空白正文由服务层拒绝
type MessageBodyReq struct {
	Body string `json:"body"`
}
