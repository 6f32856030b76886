package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/arch-QA-system/api/middleware"
	"github.com/fyerfyer/arch-QA-system/api/model"
	"github.com/fyerfyer/arch-QA-system/internal/document"
	"github.com/fyerfyer/arch-QA-system/internal/llm"
	"github.com/fyerfyer/arch-QA-system/internal/models"
	"github.com/fyerfyer/arch-QA-system/internal/pipeline"
	"github.com/fyerfyer/arch-QA-system/internal/retrieval"
	"github.com/fyerfyer/arch-QA-system/internal/services"
)

// SessionHandler 处理会话相关的API请求
type SessionHandler struct {
	service *services.ExplorerService // 会话服务
	store   *services.SessionStore    // 进程内会话表
	logger  *logrus.Logger            // 日志记录器
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(service *services.ExplorerService, store *services.SessionStore) *SessionHandler {
	if store == nil {
		store = services.NewSessionStore()
	}
	return &SessionHandler{
		service: service,
		store:   store,
		logger:  middleware.GetLogger(),
	}
}

// CreateSession 采集来源并建立会话
// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session request", model.ValidationMessages(err)...))
		return
	}

	session, err := h.service.BuildSession(c.Request.Context(), req.ToSources())
	if err != nil {
		middleware.HandleError(c, h.mapError(err))
		return
	}
	h.store.Put(session)

	c.JSON(http.StatusCreated, model.NewSuccessResponse(model.NewSessionResponse(session)))
}

// GetSession 查询会话信息
// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewSessionResponse(session)))
}

// ListSessions 列出进程内的会话
// GET /api/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	list := h.store.List()
	resp := make([]model.SessionResponse, 0, len(list))
	for _, s := range list {
		resp = append(resp, model.NewSessionResponse(s))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// Ask 在会话上回答问题
// POST /api/sessions/:id/ask
func (h *SessionHandler) Ask(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid question request", model.ValidationMessages(err)...))
		return
	}

	answer, next, err := h.service.Ask(c.Request.Context(), session, req.Question)
	if err != nil {
		middleware.HandleError(c, h.mapError(err))
		return
	}
	if turn, ok := next.LastTurn(); ok {
		if _, live := h.store.AppendTurn(session.ID, turn); !live {
			h.logger.WithField(middleware.FieldSessionID, session.ID).Warn("Session deleted while answering")
		}
	}

	h.logger.WithFields(logrus.Fields{
		middleware.FieldSessionID: session.ID,
		middleware.FieldTraceID:   middleware.GetTraceID(c),
		"cached":                  answer.Cached,
	}).Debug("Answer returned")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewAskResponse(session.ID, answer)))
}

// History 返回会话的问答历史
// GET /api/sessions/:id/history
func (h *SessionHandler) History(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req model.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid pagination", model.ValidationMessages(err)...))
		return
	}

	records, total, err := h.service.History(c.Request.Context(), session.ID, req.Offset(), req.GetPageSize())
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to load history", err.Error()))
		return
	}

	persisted := make([]model.HistoryRecord, 0, len(records))
	for _, r := range records {
		persisted = append(persisted, toHistoryRecord(r))
	}
	turns := session.History
	if turns == nil {
		turns = []services.Turn{}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.HistoryResponse{
		SessionID: session.ID,
		Turns:     turns,
		Persisted: persisted,
		Pagination: model.PaginationResponse{
			Total:    total,
			Page:     req.GetPage(),
			PageSize: req.GetPageSize(),
		},
	}))
}

// DeleteSession 删除会话
// DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session id"))
		return
	}

	session, ok := h.store.Delete(uri.ID)
	if !ok {
		middleware.HandleError(c, middleware.NewNotFoundError(models.ErrSessionNotFound.Error()))
		return
	}
	if err := h.service.CloseSession(c.Request.Context(), session); err != nil {
		h.logger.WithField(middleware.FieldSessionID, uri.ID).WithError(err).Warn("Failed to clean up session")
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DeleteResponse{
		Success:   true,
		SessionID: uri.ID,
	}))
}

// lookup 根据路径参数查找会话，找不到时写入错误
func (h *SessionHandler) lookup(c *gin.Context) (*services.Session, bool) {
	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session id"))
		return nil, false
	}
	session, ok := h.store.Get(uri.ID)
	if !ok {
		middleware.HandleError(c, middleware.NewNotFoundError(models.ErrSessionNotFound.Error()))
		return nil, false
	}
	return session, true
}

// mapError 把服务层错误映射为应用错误
func (h *SessionHandler) mapError(err error) middleware.AppError {
	var llmErr llm.LLMError
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, services.ErrNoSources),
		errors.Is(err, services.ErrEmptyQuestion):
		return middleware.NewValidationError(err.Error())
	case errors.Is(err, retrieval.ErrNoDocuments):
		return middleware.NewBusinessError("no documents could be loaded from the sources", err.Error())
	case errors.Is(err, services.ErrSessionNotReady):
		return middleware.NewBusinessError(err.Error())
	case errors.As(err, &llmErr):
		return middleware.NewUpstreamError("language model request failed", llmErr.Error())
	case errors.Is(err, document.ErrInvalidChunkConfig):
		return middleware.NewInternalError("invalid chunk configuration", err.Error())
	case errors.As(err, &stageErr):
		return middleware.NewInternalError("pipeline stage failed", stageErr.Error())
	default:
		return middleware.NewInternalError("internal error", err.Error())
	}
}

// toHistoryRecord 转换持久化记录
func toHistoryRecord(r *models.QARecord) model.HistoryRecord {
	var sources []models.SourceRef
	if len(r.Sources) > 0 {
		_ = json.Unmarshal(r.Sources, &sources)
	}
	if sources == nil {
		sources = []models.SourceRef{}
	}
	return model.HistoryRecord{
		Question:  r.Question,
		Answer:    r.Answer,
		Diagram:   r.Diagram,
		Sources:   sources,
		CreatedAt: r.CreatedAt,
	}
}
