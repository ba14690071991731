package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
	ServiceUnavailable  = 503
)

var (
	ErrParamInvalid      = errors.New("参数错误")
	ErrSignInFailed      = errors.New("登录失败")
	ErrNotSignedIn       = errors.New("尚未登录")
	ErrEmptyBody         = errors.New("消息内容不能为空")
	ErrNoCounterpart     = errors.New("未选择聊天对象")
	ErrUnknownContact    = errors.New("联系人不存在")
	ErrMessageNotFound   = errors.New("消息不存在")
	ErrSessionNotFound   = errors.New("会话不存在或已过期")
	ErrControllerStopped = errors.New("会话已关闭")
	ErrStoreWrite        = errors.New("数据写入失败，请稍后重试")
	UnauthorizedError    = errors.New("权限不足")
	UnExpectedError      = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:      BadRequest,
	ErrSignInFailed:      Unauthorized,
	ErrNotSignedIn:       Unauthorized,
	ErrEmptyBody:         BadRequest,
	ErrNoCounterpart:     BadRequest,
	ErrUnknownContact:    NotFound,
	ErrMessageNotFound:   NotFound,
	ErrSessionNotFound:   Unauthorized,
	ErrControllerStopped: Conflict,
	ErrStoreWrite:        ServiceUnavailable,
	UnauthorizedError:    Unauthorized,
	UnExpectedError:      InternalServerError,
}

// CodeOf 按错误链查找业务码
func CodeOf(err error) (int, bool) {
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for sentinel, code := range ErrorMap {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return 0, false
}
