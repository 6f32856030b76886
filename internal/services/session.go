package services

import (
	"sort"
	"sync"
	"time"

	"github.com/fyerfyer/arch-QA-system/internal/ingest"
	"github.com/fyerfyer/arch-QA-system/internal/models"
	"github.com/fyerfyer/arch-QA-system/internal/retrieval"
)

// Turn 会话中的一轮问答
type Turn struct {
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Diagram  string             `json:"diagram,omitempty"`
	Sources  []models.SourceRef `json:"sources"`
	AskedAt  time.Time          `json:"asked_at"`
}

// Session 一次建立好的索引及其问答历史
// Ask 不修改原会话，而是返回追加了新一轮问答的副本
type Session struct {
	ID             string
	Index          *retrieval.Index
	Sources        []ingest.Source
	Documents      int
	Chunks         int
	Failures       int
	FailureDetails []string
	History        []Turn
	CreatedAt      time.Time
}

// withTurn 返回追加了一轮问答的会话副本
func (s *Session) withTurn(turn Turn) *Session {
	next := *s
	next.History = make([]Turn, len(s.History), len(s.History)+1)
	copy(next.History, s.History)
	next.History = append(next.History, turn)
	return &next
}

// LastTurn 返回最近一轮问答
func (s *Session) LastTurn() (Turn, bool) {
	if s == nil || len(s.History) == 0 {
		return Turn{}, false
	}
	return s.History[len(s.History)-1], true
}

// SessionStore 进程内的会话表
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore 创建会话表
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Put 保存或替换会话
func (s *SessionStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// AppendTurn 在表中当前的会话上追加一轮问答并替换
// 并发提问不会互相覆盖；会话已被删除时返回false且不重新写入
func (s *SessionStore) AppendTurn(id string, turn Turn) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	next := current.withTurn(turn)
	s.sessions[id] = next
	return next, true
}

// Get 获取会话
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Delete 移除会话并返回被移除的会话
func (s *SessionStore) Delete(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	return session, ok
}

// List 按创建时间列出全部会话
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, session)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Len 返回会话数量
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
