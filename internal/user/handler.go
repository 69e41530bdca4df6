package user

import (
	"log"
	"net/http"

	"manual-approval-workflow/internal/auth"
	"manual-approval-workflow/internal/domain"
	"manual-approval-workflow/internal/errors"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for users
type Handler struct {
	service Service
}

// NewHandler creates a new user handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// FormLogin represents login form data
type FormLogin struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// FormRegister represents registration form data
type FormRegister struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=author approver admin"`
}

// Register handles user registration
func (h *Handler) Register(c *gin.Context) {
	var form FormRegister
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user := &domain.User{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
		Role:     form.Role,
		IsActive: true,
	}

	if err := h.service.Register(user); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.ToSafeUser()})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var form FormLogin
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user, err := h.service.Login(form.Email, form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	accessToken, err := auth.GenerateJWT(user.ID, user.Role, user.TokenVersion)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"user":         user.ToSafeUser(),
	})
}

// Logout handles user logout
func (h *Handler) Logout(c *gin.Context) {
	userID, _ := c.Get("user_id")

	err := h.service.IncreaseTokenVersion(userID.(uint64))
	if err != nil {
		log.Printf("%v\n", err.Error())
	}
	c.Status(http.StatusNoContent)
}

// GetProfile handles getting the current user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.Error(errors.Unauthorized("user not found", nil))
		return
	}

	user, err := h.service.GetUserByID(userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user.ToSafeUser())
}

func (h *Handler) SearchUsers(c *gin.Context) {
	query := c.Query("q")

	users, err := h.service.SearchUsers(
		c.Request.Context(),
		query,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, users)
}
