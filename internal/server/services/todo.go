package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/dbx"
	"github.com/dmitrijs2005/todoapi/internal/logging"
	"github.com/dmitrijs2005/todoapi/internal/server/models"
	"github.com/dmitrijs2005/todoapi/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type TodoInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    models.Priority
	Status      models.Status
}

// TodoService implements owner-scoped todo CRUD.
type TodoService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         func() time.Time
}

func NewTodoService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *TodoService {
	return &TodoService{
		db:          db,
		repomanager: m,
		log:         log,
		now:         time.Now,
	}
}

func (s *TodoService) Create(ctx context.Context, userID string, in TodoInput) (*models.Todo, error) {
	if err := s.checkDueDate(in.DueDate); err != nil {
		return nil, err
	}

	todo := &models.Todo{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		Status:      in.Status,
	}
	if err := checkText(&todo.Title, &todo.Description); err != nil {
		return nil, err
	}
	if todo.Priority == "" {
		todo.Priority = models.PriorityMedium
	}
	if todo.Status == "" {
		todo.Status = models.StatusPending
	}
	if err := checkEnums(&todo.Priority, &todo.Status); err != nil {
		return nil, err
	}

	created, err := s.repomanager.Todos(s.db).Create(ctx, todo)
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "Failed to create todo", err)
	}

	s.log.Debug(ctx, "todo created", "todo_id", created.ID, "user_id", userID)
	return created, nil
}

func (s *TodoService) Get(ctx context.Context, userID, id string) (*models.Todo, error) {
	if err := checkTodoID(id); err != nil {
		return nil, err
	}

	todo, err := s.repomanager.Todos(s.db).Get(ctx, userID, id)
	if err != nil {
		return nil, todoLookupErr(err)
	}
	return todo, nil
}

// List returns one page of the user's todos. Count and page are read in a
// single read-only transaction so the pagination totals match the rows.
func (s *TodoService) List(ctx context.Context, userID string, f models.TodoFilter) (*models.TodoPage, error) {
	f = f.Normalize()
	if err := checkFilter(f); err != nil {
		return nil, err
	}

	var (
		total int
		items []models.Todo
	)
	err := dbx.WithReadOnlyTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Todos(tx)

		var err error
		if total, err = repo.Count(ctx, userID, f); err != nil {
			return err
		}
		items, err = repo.List(ctx, userID, f)
		return err
	})
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "Failed to fetch todos", err)
	}

	if len(items) == 0 {
		return nil, common.NewError(common.ErrorNotFound, "No todos found")
	}

	return &models.TodoPage{Todos: items, Pagination: models.NewPagination(total, f)}, nil
}

func (s *TodoService) Update(ctx context.Context, userID, id string, upd models.TodoUpdate) (*models.Todo, error) {
	if err := checkTodoID(id); err != nil {
		return nil, err
	}
	if upd.Title == nil && upd.Description == nil && upd.DueDate == nil && upd.Priority == nil && upd.Status == nil {
		return nil, common.ValidationError("At least one field is required to update")
	}
	if err := s.checkDueDate(upd.DueDate); err != nil {
		return nil, err
	}
	if err := checkEnums(upd.Priority, upd.Status); err != nil {
		return nil, err
	}
	if upd.Title != nil {
		v := strings.TrimSpace(*upd.Title)
		upd.Title = &v
	}
	if upd.Description != nil {
		v := strings.TrimSpace(*upd.Description)
		upd.Description = &v
	}
	if err := checkText(upd.Title, nil); err != nil {
		return nil, err
	}

	todo, err := s.repomanager.Todos(s.db).Update(ctx, userID, id, upd)
	if err != nil {
		return nil, todoLookupErr(err)
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, id string) error {
	if err := checkTodoID(id); err != nil {
		return err
	}
	if err := s.repomanager.Todos(s.db).Delete(ctx, userID, id); err != nil {
		return todoLookupErr(err)
	}
	return nil
}

func (s *TodoService) checkDueDate(due *time.Time) error {
	if due != nil && !due.After(s.now()) {
		return common.ValidationError("Due date must be in the future",
			common.FieldError{Field: "dueDate", Message: "Due date must be in the future"})
	}
	return nil
}

// checkText rejects blank title and description. Nil fields are not checked.
func checkText(title, description *string) error {
	var fields []common.FieldError
	if title != nil && *title == "" {
		fields = append(fields, common.FieldError{Field: "title", Message: "Title is required"})
	}
	if description != nil && *description == "" {
		fields = append(fields, common.FieldError{Field: "description", Message: "Description is required"})
	}
	if len(fields) > 0 {
		return common.ValidationError(fields[0].Message, fields...)
	}
	return nil
}

func checkTodoID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ValidationError("Invalid Todo Id",
			common.FieldError{Field: "todoId", Message: "Invalid Todo Id"})
	}
	return nil
}

func checkEnums(p *models.Priority, st *models.Status) error {
	var fields []common.FieldError
	if p != nil && !p.Valid() {
		fields = append(fields, common.FieldError{Field: "priority", Message: "Priority must be one of low, medium, high"})
	}
	if st != nil && !st.Valid() {
		fields = append(fields, common.FieldError{Field: "status", Message: "Status must be one of pending, in-progress, completed"})
	}
	if len(fields) > 0 {
		return common.ValidationError("Validation failed", fields...)
	}
	return nil
}

func checkFilter(f models.TodoFilter) error {
	var p *models.Priority
	var st *models.Status
	if f.Priority != "" {
		p = &f.Priority
	}
	if f.Status != "" {
		st = &f.Status
	}
	return checkEnums(p, st)
}

func todoLookupErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.NewError(common.ErrorNotFound, "Todo not found")
	}
	return common.WrapError(common.ErrorInternal, "Something went wrong", err)
}
