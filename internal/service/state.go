package service

import "Parley/internal/model"

// Phase 聊天视图状态机
type Phase string

const (
	PhaseNoIdentity       Phase = "NO_IDENTITY"
	PhaseNoSelection      Phase = "NO_SELECTION"
	PhaseConversationOpen Phase = "CONVERSATION_OPEN"
)

// ContactView 联系人列表中的一项
type ContactView struct {
	model.Identity
	Online   bool `json:"online"`
	Unread   bool `json:"unread"`
	Selected bool `json:"selected"`
}

// MessageView 消息气泡, Mine 决定左右对齐
type MessageView struct {
	model.Message
	Mine bool `json:"mine"`
}

// ViewState 渲染用的不可变快照
type ViewState struct {
	Phase           Phase           `json:"phase"`
	Self            *model.Identity `json:"self,omitempty"`
	Contacts        []ContactView   `json:"contacts"`
	Counterpart     *model.Identity `json:"counterpart,omitempty"`
	ConversationKey string          `json:"conversationKey,omitempty"`
	Messages        []MessageView   `json:"messages"`
	Unread          []string        `json:"unread"`
	Version         uint64          `json:"version"`
}

// chatState 每个会话唯一的权威状态; 所有变更都返回新值, 不原地修改
type chatState struct {
	phase       Phase
	self        *model.Identity
	directory   []model.Identity
	presence    map[string]bool
	previews    map[string]model.LastMessagePreview
	counterpart string
	key         string
	messages    []model.Message
	markPending bool
	epoch       uint64
	threadGen   uint64
	version     uint64
}

func signedOut(prev chatState) chatState {
	return chatState{phase: PhaseNoIdentity, epoch: prev.epoch + 1, version: prev.version}
}

func signedIn(prev chatState, self *model.Identity) chatState {
	return chatState{phase: PhaseNoSelection, self: self, epoch: prev.epoch + 1, version: prev.version}
}

func (s chatState) withDirectory(all []model.Identity) chatState {
	s.directory = all
	return s
}

func (s chatState) withPresence(flags map[string]bool) chatState {
	s.presence = flags
	return s
}

func (s chatState) withPreviews(previews map[string]model.LastMessagePreview) chatState {
	s.previews = previews
	return s
}

func (s chatState) withConversation(counterpart, key string, gen uint64) chatState {
	s.phase = PhaseConversationOpen
	s.counterpart = counterpart
	s.key = key
	s.threadGen = gen
	s.messages = nil
	s.markPending = true
	return s
}

func (s chatState) withoutConversation() chatState {
	s.phase = PhaseNoSelection
	s.counterpart = ""
	s.key = ""
	s.messages = nil
	s.markPending = false
	return s
}

func (s chatState) withMessages(messages []model.Message) chatState {
	s.messages = messages
	return s
}

func (s chatState) selfID() string {
	if s.self == nil {
		return ""
	}
	return s.self.ID
}

// render 派生视图, 所有切片都是新分配的
func (s chatState) render() ViewState {
	v := ViewState{
		Phase:           s.phase,
		ConversationKey: s.key,
		Contacts:        []ContactView{},
		Messages:        []MessageView{},
		Unread:          []string{},
		Version:         s.version,
	}
	if s.self == nil {
		return v
	}
	self := *s.self
	v.Self = &self

	selfID := s.selfID()
	v.Unread = Unread(s.previews, selfID)
	unread := make(map[string]bool, len(v.Unread))
	for _, id := range v.Unread {
		unread[id] = true
	}

	for _, ident := range Contacts(s.directory, selfID) {
		v.Contacts = append(v.Contacts, ContactView{
			Identity: ident,
			Online:   IsOnline(s.presence, ident.ID),
			Unread:   unread[ident.ID],
			Selected: ident.ID == s.counterpart,
		})
	}

	if s.counterpart != "" {
		if cp, ok := Lookup(s.directory, s.counterpart); ok {
			v.Counterpart = &cp
		} else {
			v.Counterpart = &model.Identity{ID: s.counterpart}
		}
	}
	for _, m := range s.messages {
		v.Messages = append(v.Messages, MessageView{Message: m, Mine: m.SenderID == selfID})
	}
	return v
}
