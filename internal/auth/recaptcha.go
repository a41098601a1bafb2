package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/config"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

const recaptchaLocalsKey = "recaptcha"

// RecaptchaResult is the verifier response attached to the request.
type RecaptchaResult struct {
	Success     bool     `json:"success"`
	Hostname    string   `json:"hostname"`
	ChallengeTS string   `json:"challenge_ts"`
	ErrorCodes  []string `json:"error-codes"`
}

// Recaptcha validates the captcha token sent with auth forms.
type Recaptcha struct {
	secret    string
	verifyURL string
	timeout   time.Duration
	logger    *zap.Logger
}

type recaptchaBody struct {
	Token      string `json:"recaptchaToken" form:"recaptchaToken"`
	GRecaptcha string `json:"g-recaptcha-response" form:"g-recaptcha-response"`
}

// NewRecaptcha builds the middleware. With an empty secret it lets every request through.
func NewRecaptcha(cfg config.RecaptchaConfig, logger *zap.Logger) *Recaptcha {
	if cfg.SecretKey == "" {
		logger.Warn("RECAPTCHA_SECRET_KEY not set; captcha verification disabled")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recaptcha{secret: cfg.SecretKey, verifyURL: cfg.VerifyURL, timeout: timeout, logger: logger}
}

// Enabled reports whether verification is active.
func (r *Recaptcha) Enabled() bool {
	return r != nil && r.secret != ""
}

// Handle verifies the token found in a JSON, urlencoded or multipart body.
func (r *Recaptcha) Handle(c *fiber.Ctx) error {
	if !r.Enabled() {
		return c.Next()
	}

	var body recaptchaBody
	_ = c.BodyParser(&body)
	token := body.Token
	if token == "" {
		token = body.GRecaptcha
	}
	if token == "" {
		return apperrors.NewValidationError("recaptcha token required", nil)
	}

	result, err := r.verify(token, c.IP())
	if err != nil {
		return err
	}
	if !result.Success {
		r.logger.Warn("recaptcha rejected", zap.Strings("error_codes", result.ErrorCodes))
		return apperrors.NewForbidden("recaptcha verification failed")
	}

	c.Locals(recaptchaLocalsKey, result)
	return c.Next()
}

func (r *Recaptcha) verify(token, remoteIP string) (*RecaptchaResult, error) {
	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("secret", r.secret)
	args.Set("response", token)
	if remoteIP != "" {
		args.Set("remoteip", remoteIP)
	}

	agent := fiber.Post(r.verifyURL).Timeout(r.timeout).Form(args)
	status, payload, errs := agent.Bytes()
	if len(errs) > 0 {
		r.logger.Error("recaptcha request failed", zap.Errors("errors", errs))
		return nil, apperrors.NewInternalError(errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		r.logger.Error("recaptcha verifier returned non-2xx", zap.Int("status", status))
		return nil, apperrors.NewBadGateway("recaptcha verification unavailable", fmt.Errorf("verifier status %d", status))
	}

	var result RecaptchaResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("decode recaptcha response: %w", err))
	}
	return &result, nil
}
