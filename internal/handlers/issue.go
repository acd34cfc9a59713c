package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/services"
	"civicpulse/internal/store"
	"civicpulse/internal/utils"
)

type IssueHandler struct {
	issues  *services.IssueService
	upvotes *services.UpvoteService
	roles   middleware.RoleLookup
}

func NewIssueHandler(issues *services.IssueService, upvotes *services.UpvoteService, roles middleware.RoleLookup) *IssueHandler {
	return &IssueHandler{issues: issues, upvotes: upvotes, roles: roles}
}

type reportRequest struct {
	Title       string `json:"title"`
	Tittle      string `json:"tittle"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Image       string `json:"image"`
	Priority    string `json:"priority"`
	UserEmail   string `json:"userEmail"`
}

// Report 提交新问题，同标题已存在时返回 alreadyExists
func (h *IssueHandler) Report(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid issue")
		return
	}

	issue, err := h.issues.Report(c.Request.Context(), services.IssueDraft{
		Title:         firstNonEmpty(req.Title, req.Tittle),
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		Image:         req.Image,
		Priority:      req.Priority,
		ReporterEmail: firstNonEmpty(middleware.TokenEmail(c), req.UserEmail),
	})
	if errors.Is(err, services.ErrAlreadyExists) {
		c.JSON(http.StatusOK, gin.H{"success": false, "alreadyExists": true, "message": "Already Exists"})
		return
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "insertedId": issue.ID, "issue": issue})
}

func (h *IssueHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	issue, err := h.issues.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// List serves /allIssues with search, filters, sort and pagination.
func (h *IssueHandler) List(c *gin.Context) {
	boosted := strings.ToLower(c.Query("boosted"))
	page, err := h.issues.List(c.Request.Context(), store.IssueQuery{
		Search:      strings.TrimSpace(c.Query("search")),
		Category:    c.Query("category"),
		Status:      c.Query("status"),
		Priority:    c.Query("priority"),
		BoostedOnly: boosted == "true" || boosted == "1",
		Sort:        c.Query("sort"),
		Page:        utils.StringToInt(c.Query("page")),
		Limit:       utils.StringToInt(c.Query("limit")),
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"issues":      page.Issues,
		"totalPages":  page.TotalPages,
		"totalCount":  page.TotalCount,
		"currentPage": page.CurrentPage,
	})
}

func (h *IssueHandler) Categories(c *gin.Context) {
	categories, err := h.issues.Categories(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *IssueHandler) ListByReporter(c *gin.Context) {
	issues, err := h.issues.ListByReporter(c.Request.Context(), c.Param("email"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

type timelineRequest struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	UpdatedBy string `json:"updatedBy"`
}

type updateRequest struct {
	Title       *string          `json:"title"`
	Tittle      *string          `json:"tittle"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Location    *string          `json:"location"`
	Image       *string          `json:"image"`
	Priority    *string          `json:"priority"`
	Status      string           `json:"status"`
	Timeline    *timelineRequest `json:"timeline"`
}

// Update edits issue fields. A status change (top-level status or
// timeline.status) goes through the lifecycle rules and adds a timeline entry
// credited to the token holder, who must be staff or admin.
func (h *IssueHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid update")
		return
	}

	upd := services.IssueUpdate{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Image:       req.Image,
		Priority:    req.Priority,
		Actor:       middleware.TokenEmail(c),
	}
	if upd.Title == nil {
		upd.Title = req.Tittle
	}

	status := strings.TrimSpace(req.Status)
	if req.Timeline != nil {
		ts := strings.TrimSpace(req.Timeline.Status)
		if status != "" && ts != "" && ts != status {
			badRequest(c, "status and timeline.status disagree")
			return
		}
		status = firstNonEmpty(status, ts)
		upd.Message = utils.PlainText(req.Timeline.Message)
		upd.Actor = firstNonEmpty(upd.Actor, req.Timeline.UpdatedBy)
	}
	if status != "" {
		if !h.canTriage(c) {
			return
		}
		next := models.IssueStatus(status)
		upd.Status = &next
	}

	res, err := h.issues.Update(c.Request.Context(), id, upd)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched": res.Matched, "modified": res.Modified, "issue": res.Issue})
}

// Upvote adds the caller's vote once; repeats are answered without change.
func (h *IssueHandler) Upvote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		VoterEmail string `json:"voterEmail"`
		UserEmail  string `json:"userEmail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid upvote")
		return
	}
	// 有令牌时以令牌身份投票，请求体里的邮箱只服务匿名客户端
	voter := firstNonEmpty(middleware.TokenEmail(c), req.VoterEmail, req.UserEmail)

	applied, err := h.upvotes.Upvote(c.Request.Context(), id, voter)
	if err != nil {
		RespondError(c, err)
		return
	}
	if !applied {
		c.JSON(http.StatusOK, gin.H{"success": true, "applied": false, "message": "You already upvoted this issue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "applied": true, "message": "Upvote added"})
}

// canTriage 状态流转仅限 staff 与 admin
func (h *IssueHandler) canTriage(c *gin.Context) bool {
	role, err := h.roles(c.Request.Context(), middleware.TokenEmail(c))
	if err != nil {
		RespondError(c, err)
		return false
	}
	if role != models.RoleStaff && role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden Access!"})
		return false
	}
	return true
}

func (h *IssueHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.issues.Delete(c.Request.Context(), id); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Issue deleted successfully"})
}
