package model

// Identity 身份提供方返回的登录用户, ID 全局稳定
type Identity struct {
	ID          string `json:"uid" validate:"required"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email" validate:"omitempty,email"`
	AvatarURL   string `json:"photoURL"`
}

// DirectoryEntry users/{id} 下存储的内容, id 本身是子节点的 key
type DirectoryEntry struct {
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Entry 转换为目录记录
func (i *Identity) Entry() DirectoryEntry {
	return DirectoryEntry{
		Email:       i.Email,
		DisplayName: i.DisplayName,
		PhotoURL:    i.AvatarURL,
	}
}

// IdentityFromEntry 由目录记录还原身份
func IdentityFromEntry(id string, e DirectoryEntry) Identity {
	return Identity{
		ID:          id,
		DisplayName: e.DisplayName,
		Email:       e.Email,
		AvatarURL:   e.PhotoURL,
	}
}
