package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/logging"
	"github.com/dmitrijs2005/todoapi/internal/server/auth"
	"github.com/dmitrijs2005/todoapi/internal/server/models"
	"github.com/dmitrijs2005/todoapi/internal/server/services"
	"github.com/dmitrijs2005/todoapi/internal/server/storage"
	"github.com/gin-gonic/gin"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput, avatar *storage.Image) (*models.User, error)
	Login(ctx context.Context, email, password, clientIP string) (*services.Session, error)
	Logout(ctx context.Context, userID string) error
	RefreshToken(ctx context.Context, presented string) (*services.Session, error)
	Authenticate(ctx context.Context, accessToken string) (models.Identity, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID string, img *storage.Image) (*models.User, error)
}

type TodoService interface {
	Create(ctx context.Context, userID string, in services.TodoInput) (*models.Todo, error)
	Get(ctx context.Context, userID, id string) (*models.Todo, error)
	List(ctx context.Context, userID string, f models.TodoFilter) (*models.TodoPage, error)
	Update(ctx context.Context, userID, id string, upd models.TodoUpdate) (*models.Todo, error)
	Delete(ctx context.Context, userID, id string) error
}

type handler struct {
	users        UserService
	todos        TodoService
	logger       logging.Logger
	env          string
	cookieSecure bool
	accessTTL    time.Duration
	refreshTTL   time.Duration
	health       HealthFunc
}

func (h *handler) healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.logger.Warn(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, errorResponse{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "Service unavailable",
				Errors:     []common.FieldError{},
			})
			return
		}
	}
	respond(c, http.StatusOK, gin.H{"status": "ok"}, "Healthy")
}

// userID returns the id placed into the context by authenticate.
func userID(c *gin.Context) (string, bool) {
	id, ok := auth.UserFromContext(c.Request.Context())
	if !ok {
		_ = c.Error(common.NewError(common.ErrorUnauthorized, "Unauthorized request"))
		return "", false
	}
	return id.ID, true
}

func (h *handler) setAuthCookies(c *gin.Context, pair services.TokenPair) {
	h.setCookie(c, common.AccessTokenCookieName, pair.AccessToken, int(h.accessTTL.Seconds()))
	h.setCookie(c, common.RefreshTokenCookieName, pair.RefreshToken, int(h.refreshTTL.Seconds()))
}

func (h *handler) clearAuthCookies(c *gin.Context) {
	h.setCookie(c, common.AccessTokenCookieName, "", -1)
	h.setCookie(c, common.RefreshTokenCookieName, "", -1)
}

func (h *handler) setCookie(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// readAvatar returns the uploaded avatar or nil when none was sent.
func readAvatar(c *gin.Context) (*storage.Image, error) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, common.WrapError(common.ErrorValidation, "Invalid multipart form", err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "Failed to read avatar", err)
	}
	defer f.Close()

	img, err := storage.ReadImage(f)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			e := common.WrapError(common.ErrorValidation, "Invalid avatar file", err)
			e.Fields = []common.FieldError{{Field: "avatar", Message: "Avatar must be an image of at most 5MB"}}
			return nil, e
		}
		return nil, common.WrapError(common.ErrorInternal, "Failed to read avatar", err)
	}
	return img, nil
}
