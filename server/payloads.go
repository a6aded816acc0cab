package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/reddyt/reddyt-admin/runs"
)

// ProfileRequest payload
type ProfileRequest struct {
	Name           string `json:"name"`
	UploadSchedule string `json:"upload_schedule"`
	Paused         *bool  `json:"paused"`
	QuestionPrompt string `json:"question_prompt"`
	AnswerPrompt   string `json:"answer_prompt"`
	BackgroundGlob string `json:"background_glob"`
	VoiceName      string `json:"voice_name"`
	FontName       string `json:"font_name"`
}

// Validate will run validation rules
func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.UploadSchedule, validation.Required),
		validation.Field(&r.QuestionPrompt, validation.Length(0, 4000)),
		validation.Field(&r.AnswerPrompt, validation.Length(0, 4000)),
	)
}

// Apply copies the request onto profile.
func (r ProfileRequest) Apply(profile *runs.Profile) {
	profile.Name = strings.TrimSpace(r.Name)
	profile.UploadSchedule = strings.TrimSpace(r.UploadSchedule)
	profile.QuestionPrompt = r.QuestionPrompt
	profile.AnswerPrompt = r.AnswerPrompt
	profile.BackgroundGlob = r.BackgroundGlob
	profile.VoiceName = r.VoiceName
	profile.FontName = r.FontName
	if r.Paused != nil {
		profile.Paused = *r.Paused
	}
}

// OverrideRequest payload
type OverrideRequest struct {
	RunsAt time.Time `json:"runs_at"`
}

// Validate will run validation rules
func (r OverrideRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RunsAt, validation.Required),
	)
}

// FailRequest payload
type FailRequest struct {
	Message string `json:"message"`
}

// Validate will run validation rules
func (r FailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, 2000)),
	)
}

// ConnectionRequest payload. Tokens are optional, depending on the platform.
type ConnectionRequest struct {
	OAuthType    string  `json:"oauth_type"`
	RefreshToken *string `json:"refresh_token"`
	AuthToken    *string `json:"auth_token"`
}

// Validate will run validation rules
func (r ConnectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OAuthType, validation.Required),
	)
}

// TokensRequest payload
type TokensRequest struct {
	RefreshToken *string `json:"refresh_token"`
	AuthToken    *string `json:"auth_token"`
}

// Validate will run validation rules
func (r TokensRequest) Validate() error {
	return nil
}

// UploadRequest payload
type UploadRequest struct {
	Platform     string    `json:"platform"`
	GeneratedURL string    `json:"generated_url"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Validate will run validation rules. Local uploads carry a file path, every
// other platform a URL.
func (r UploadRequest) Validate() error {
	urlRules := []validation.Rule{validation.Required, validation.Length(1, 2048)}
	if !strings.EqualFold(r.Platform, string(runs.PlatformLocal)) {
		urlRules = append(urlRules, is.URL)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Platform, validation.Required),
		validation.Field(&r.GeneratedURL, urlRules...),
	)
}

type validatable interface {
	Validate() error
}

func bind(c router.Context, payload validatable) error {
	if err := c.Bind(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

func paramID(c router.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}

func queryID(c router.Context, key string) (uuid.UUID, error) {
	raw := c.Query(key, "")
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s=%q", ErrInvalidID, key, raw)
	}
	return id, nil
}

// queryInt reads a non negative integer query value, zero when absent.
func queryInt(c router.Context, key string) (int, error) {
	raw := c.Query(key, "")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidQuery, key, raw)
	}
	return n, nil
}

func queryBool(c router.Context, key string) (bool, error) {
	raw := c.Query(key, "")
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidQuery, key, raw)
	}
	return v, nil
}
