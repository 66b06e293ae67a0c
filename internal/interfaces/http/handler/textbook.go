// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"textbook-ai-api/internal/application/textbook"
	"textbook-ai-api/internal/domain/repository"
	"textbook-ai-api/internal/interfaces/http/dto"
)

// TextbookHandler 教材处理器
type TextbookHandler struct {
	svc *textbook.Service
}

// NewTextbookHandler 创建教材处理器
func NewTextbookHandler(svc *textbook.Service) *TextbookHandler {
	return &TextbookHandler{svc: svc}
}

// Generate 发起教材生成
// @Summary 发起教材生成
// @Description 同步生成大纲并创建教材记录，内容在后台渐进生成
// @Tags Textbooks
// @Accept json
// @Produce json
// @Param body body dto.GenerateTextbookRequest true "生成参数"
// @Success 201 {object} dto.Response[dto.GenerateTextbookResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/textbooks/generate [post]
func (h *TextbookHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateTextbookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	tb, err := h.svc.StartGeneration(ctx, req.Prompt, req.ChapterCount)
	if err != nil {
		respondError(c, err, "failed to start textbook generation")
		return
	}

	dto.Created(c, dto.GenerateTextbookResponse{
		TextbookID:    tb.ID,
		Title:         tb.Title,
		Status:        string(tb.Status),
		TotalSections: tb.TotalSections,
	})
}

// List 获取教材列表
// @Summary 获取教材列表
// @Description 分页获取教材列表，按创建时间倒序
// @Tags Textbooks
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.TextbookListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/textbooks [get]
func (h *TextbookHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	pageReq := dto.BindPage(c)

	result, err := h.svc.List(ctx, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		respondError(c, err, "failed to list textbooks")
		return
	}

	resp := dto.ToTextbookListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// Get 获取教材详情
// @Summary 获取教材详情
// @Description 获取教材及已生成的全部章节与小节内容
// @Tags Textbooks
// @Produce json
// @Param tid path string true "教材 ID"
// @Success 200 {object} dto.Response[dto.TextbookResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/textbooks/{tid} [get]
func (h *TextbookHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	textbookID := dto.BindTextbookID(c)

	tb, err := h.svc.GetTextbook(ctx, textbookID)
	if err != nil {
		respondError(c, err, "failed to get textbook")
		return
	}

	dto.Success(c, dto.ToTextbookResponse(tb))
}

// Progress 获取生成进度
// @Summary 获取生成进度
// @Description 获取教材的进度快照，含当前生成位置与预估剩余时间
// @Tags Textbooks
// @Produce json
// @Param tid path string true "教材 ID"
// @Success 200 {object} dto.Response[dto.ProgressResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/textbooks/{tid}/progress [get]
func (h *TextbookHandler) Progress(c *gin.Context) {
	ctx := c.Request.Context()
	textbookID := dto.BindTextbookID(c)

	snap, err := h.svc.Progress(ctx, textbookID)
	if err != nil {
		respondError(c, err, "failed to get textbook progress")
		return
	}

	dto.Success(c, dto.ToProgressResponse(snap))
}
