package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/server/models"
	"github.com/dmitrijs2005/todoapi/internal/server/services"
	"github.com/gin-gonic/gin"
)

type createTodoRequest struct {
	Title       string          `json:"title" binding:"required,notblank,max=100"`
	Description string          `json:"description" binding:"required,notblank,max=500"`
	DueDate     *time.Time      `json:"dueDate"`
	Priority    models.Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status      models.Status   `json:"status" binding:"omitempty,oneof=pending in-progress completed"`
}

type updateTodoRequest struct {
	Title       *string          `json:"title" binding:"omitempty,notblank,max=100"`
	Description *string          `json:"description" binding:"omitempty,notblank,max=500"`
	DueDate     *time.Time       `json:"dueDate"`
	Priority    *models.Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status      *models.Status   `json:"status" binding:"omitempty,oneof=pending in-progress completed"`
}

type listTodosQuery struct {
	Status   models.Status   `form:"status" binding:"omitempty,oneof=pending in-progress completed"`
	Priority models.Priority `form:"priority" binding:"omitempty,oneof=low medium high"`
	Page     string          `form:"page"`
	Limit    string          `form:"limit"`
}

func (h *handler) createTodo(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	todo, err := h.todos.Create(c.Request.Context(), id, services.TodoInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusCreated, todo, "Todo created successfully")
}

func (h *handler) listTodos(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var q listTodosQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	page, err := h.todos.List(c.Request.Context(), id, models.TodoFilter{
		Status:   q.Status,
		Priority: q.Priority,
		Page:     atoiOrZero(q.Page),
		Limit:    atoiOrZero(q.Limit),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, page, "Todos fetched successfully")
}

func (h *handler) getTodo(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	todo, err := h.todos.Get(c.Request.Context(), id, c.Param("todoId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, todo, "Todo fetched successfully")
}

func (h *handler) updateTodo(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req updateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	todo, err := h.todos.Update(c.Request.Context(), id, c.Param("todoId"), models.TodoUpdate{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, todo, "Todo updated successfully")
}

func (h *handler) deleteTodo(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	if err := h.todos.Delete(c.Request.Context(), id, c.Param("todoId")); err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, nil, "Todo deleted successfully")
}

// atoiOrZero lets Normalize pick the default for missing or garbled values.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
