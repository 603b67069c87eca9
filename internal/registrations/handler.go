package registrations

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/astro-comp/registrar/pkg/response"
)

// RegisterResponse is the data payload of an accepted registration.
type RegisterResponse struct {
	RegistrationID string `json:"registrationId"`
	EmailWarning   bool   `json:"emailWarning,omitempty"`
	EmailError     string `json:"emailError,omitempty"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /api/register.
func (h *Handler) Register(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			response.ValidationFailed(c, verr.Fields)
		case errors.Is(err, ErrDuplicate):
			response.Conflict(c, "Email already registered",
				"This email address is already registered for the competition.")
		default:
			h.logger.Error("POST /api/register", zap.Error(err))
			response.Internal(c, "Registration failed",
				"An internal server error occurred. Please try again later.")
		}
		return
	}

	data := RegisterResponse{RegistrationID: result.Registration.ID}
	if !result.EmailWarning {
		response.OKWithMessage(c, "Registration successful! Check your email for confirmation.", data)
		return
	}

	data.EmailWarning = true
	data.EmailError = result.EmailError
	response.OKWithMessage(c,
		"Registration successful! However, there was an issue sending the confirmation email. "+
			"Please contact us if you don't receive it.",
		data,
	)
}
