package devapi

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"bookworm/internal/common/errors"
	"bookworm/internal/common/middleware"
	"bookworm/internal/common/validation"
	"bookworm/internal/domain/book"
	"bookworm/internal/domain/user"
)

const (
	defaultPage  = 1
	defaultLimit = 5
	maxLimit     = 50
)

type authResponse struct {
	Token        string     `json:"token"`
	ID           string     `json:"_id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	ProfileImage string     `json:"profileImages,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

func newAuthResponse(token string, a *user.Account) authResponse {
	return authResponse{
		Token:        token,
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		ProfileImage: a.ProfileImage,
		CreatedAt:    a.CreatedAt,
	}
}

type AuthHandler struct {
	users      user.Repository
	log        zerolog.Logger
	bcryptCost int
	now        func() time.Time
}

func NewAuthHandler(users user.Repository, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log, bcryptCost: bcrypt.DefaultCost, now: time.Now}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewBadRequestError("Invalid request body"))
		return
	}
	if err := validation.ValidateRegistration(req.Username, req.Email, req.Password); err != nil {
		_ = c.Error(asBadRequest(err))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeInternal, "Failed to hash password"))
		return
	}

	createdAt := h.now().UTC()
	username := strings.TrimSpace(req.Username)
	account := &user.Account{
		Identity: user.Identity{
			Username:     username,
			Email:        strings.TrimSpace(req.Email),
			ProfileImage: "https://api.dicebear.com/9.x/lorelei/svg?seed=" + username,
			CreatedAt:    &createdAt,
		},
		PasswordHash: hash,
	}
	switch err := h.users.Create(c.Request.Context(), account); {
	case stderrors.Is(err, user.ErrEmailTaken):
		_ = c.Error(errors.NewBadRequestError("Email already exists"))
		return
	case stderrors.Is(err, user.ErrUsernameTaken):
		_ = c.Error(errors.NewBadRequestError("Username already exists"))
		return
	case err != nil:
		_ = c.Error(errors.Wrap(err, errors.ErrCodeInternal, "Failed to create user"))
		return
	}

	token, err := h.users.IssueToken(c.Request.Context(), account.ID)
	if err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeInternal, "Failed to issue token"))
		return
	}

	h.log.Info().Str("user_id", account.ID).Str("username", account.Username).Msg("User registered")
	c.JSON(http.StatusCreated, newAuthResponse(token, account))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewBadRequestError("Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		_ = c.Error(errors.NewBadRequestError("All fields are required"))
		return
	}

	account, err := h.users.GetByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		_ = c.Error(errors.NewBadRequestError("Invalid credentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(req.Password)); err != nil {
		_ = c.Error(errors.NewBadRequestError("Invalid credentials"))
		return
	}

	token, err := h.users.IssueToken(c.Request.Context(), account.ID)
	if err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeInternal, "Failed to issue token"))
		return
	}
	c.JSON(http.StatusOK, newAuthResponse(token, account))
}

type BookHandler struct {
	books book.Repository
	log   zerolog.Logger
	now   func() time.Time
}

func NewBookHandler(books book.Repository, log zerolog.Logger) *BookHandler {
	return &BookHandler{books: books, log: log, now: time.Now}
}

func (h *BookHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	books := router.Group("/book", auth)
	{
		books.GET("", h.List)
		books.POST("", h.Create)
		books.DELETE("/:id", h.Delete)
	}
}

func (h *BookHandler) List(c *gin.Context) {
	page, err := positiveQuery(c, "page", defaultPage)
	if err != nil {
		_ = c.Error(err)
		return
	}
	limit, err := positiveQuery(c, "limit", defaultLimit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	out, err := h.books.List(c.Request.Context(), page, limit)
	if err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeInternal, "Failed to list books"))
		return
	}
	c.JSON(http.StatusOK, out)
}

func positiveQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.NewBadRequestError("Invalid " + name)
	}
	return n, nil
}

// asBadRequest keeps a validation message but answers with 400.
func asBadRequest(err error) *errors.AppError {
	if appErr, ok := errors.AsAppError(err); ok {
		return errors.NewBadRequestError(appErr.Message)
	}
	return errors.NewBadRequestError(err.Error())
}

type createBookRequest struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	Image   string `json:"image"`
	Rating  string `json:"rating"`
}

func (h *BookHandler) Create(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("No authentication token, access denied"))
		return
	}

	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewBadRequestError("Invalid request body"))
		return
	}
	if req.Title == "" || req.Caption == "" || req.Image == "" || req.Rating == "" {
		_ = c.Error(errors.NewBadRequestError("Please provide all fields"))
		return
	}
	rating, err := strconv.Atoi(req.Rating)
	if err != nil {
		_ = c.Error(errors.NewBadRequestError("Invalid rating"))
		return
	}
	for _, check := range []error{
		validation.ValidateTitle(req.Title),
		validation.ValidateCaption(req.Caption),
		validation.ValidateRating(rating),
		validation.ValidateImageDataURL(req.Image),
	} {
		if check != nil {
			_ = c.Error(asBadRequest(check))
			return
		}
	}

	now := h.now().UTC()
	b := &book.Book{
		Title:   strings.TrimSpace(req.Title),
		Caption: strings.TrimSpace(req.Caption),
		Image:   req.Image,
		Rating:  rating,
		Owner: book.Owner{
			ID:           account.ID,
			Username:     account.Username,
			ProfileImage: account.ProfileImage,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.books.Create(c.Request.Context(), b); err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeInternal, "Failed to create book"))
		return
	}

	h.log.Info().Str("book_id", b.ID).Str("user_id", account.ID).Msg("Book created")
	c.JSON(http.StatusCreated, b)
}

func (h *BookHandler) Delete(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("No authentication token, access denied"))
		return
	}

	id := c.Param("id")
	b, err := h.books.GetByID(c.Request.Context(), id)
	if stderrors.Is(err, book.ErrNotFound) {
		_ = c.Error(errors.NewNotFoundError("Book", id))
		return
	}
	if err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeInternal, "Failed to load book"))
		return
	}
	if b.Owner.ID != account.ID {
		_ = c.Error(errors.NewForbiddenError("You can only delete your own books"))
		return
	}

	if err := h.books.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeInternal, "Failed to delete book"))
		return
	}

	h.log.Info().Str("book_id", id).Str("user_id", account.ID).Msg("Book deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}
