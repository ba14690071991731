package dto

import "Parley/internal/model"

// LoginURLResp 登录弹窗地址, state 需在回调时原样带回
type LoginURLResp struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// CallbackReq 身份提供方回调参数
type CallbackReq struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state" binding:"required"`
}

type CallbackResp struct {
	Token    string          `json:"token"`
	Identity *model.Identity `json:"identity"`
}
