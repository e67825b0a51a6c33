package models

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Todo is a task owned by a single user.
type Todo struct {
	ID          string     `json:"_id"`
	UserID      string     `json:"user"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TodoUpdate carries optional changes; nil fields are left as stored.
type TodoUpdate struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *Priority
	Status      *Status
}

// TodoFilter narrows a todo listing. Zero values mean "any".
type TodoFilter struct {
	Status   Status
	Priority Priority
	Page     int
	Limit    int
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Normalize clamps paging to sane values.
func (f TodoFilter) Normalize() TodoFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

func (f TodoFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type Pagination struct {
	TotalTodos  int `json:"totalTodos"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
}

// NewPagination computes page totals for a listing of total items.
func NewPagination(total int, f TodoFilter) Pagination {
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	return Pagination{TotalTodos: total, TotalPages: pages, CurrentPage: f.Page}
}

type TodoPage struct {
	Todos      []Todo     `json:"todos"`
	Pagination Pagination `json:"pagination"`
}
