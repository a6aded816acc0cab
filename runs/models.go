package runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
)

// Run is one pass of a profile through the video pipeline.
type Run struct {
	bun.BaseModel `bun:"table:runs,alias:run"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ProfileID     uuid.UUID  `bun:"profile_id,notnull,type:uuid" json:"profile_id"`
	RunDate       time.Time  `bun:"run_date,notnull" json:"run_date"`
	Source        RunSource  `bun:"source,notnull" json:"source"`
	State         RunState   `bun:"current_state,notnull" json:"current_state"`
	Error         *string    `bun:"error" json:"error,omitempty"`
	StartedAt     *time.Time `bun:"started_at,nullzero" json:"started_at,omitempty"`
	FinishedAt    *time.Time `bun:"finished_at,nullzero" json:"finished_at,omitempty"`
	Version       int64      `bun:"version,notnull" json:"version"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// RunSource records what created a run. Only scheduled runs advance the
// profile's cron anchor.
type RunSource string

const (
	SourceScheduled RunSource = "scheduled"
	SourceOverride  RunSource = "override"
	SourceManual    RunSource = "manual"
)

// Valid reports whether s is a known source.
func (s RunSource) Valid() bool {
	switch s {
	case SourceScheduled, SourceOverride, SourceManual:
		return true
	}
	return false
}

// NewRun returns a scheduled run in Idling for profileID at runDate.
func NewRun(profileID uuid.UUID, runDate time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		ProfileID: profileID,
		RunDate:   runDate.UTC().Truncate(time.Second),
		Source:    SourceScheduled,
		State:     StateIdling,
	}
}

// WithSource sets the run source and returns the run.
func (r *Run) WithSource(source RunSource) *Run {
	r.Source = source
	return r
}

// ErrorMessage returns the recorded failure, if any.
func (r *Run) ErrorMessage() (string, bool) {
	if r == nil || r.Error == nil {
		return "", false
	}
	return *r.Error, true
}

// Profile owns runs and describes how their videos are produced.
type Profile struct {
	bun.BaseModel  `bun:"table:profiles,alias:prf"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name           string     `bun:"name,notnull,unique" json:"name"`
	UploadSchedule string     `bun:"upload_schedule,notnull" json:"upload_schedule"`
	Paused         bool       `bun:"paused,notnull" json:"paused"`
	QuestionPrompt string     `bun:"question_prompt,notnull" json:"question_prompt"`
	AnswerPrompt   string     `bun:"answer_prompt,notnull" json:"answer_prompt"`
	BackgroundGlob string     `bun:"background_glob,notnull" json:"background_glob"`
	VoiceName      string     `bun:"voice_name,notnull" json:"voice_name"`
	FontName       string     `bun:"font_name,notnull" json:"font_name"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// cronParser accepts exactly five fields. Descriptors such as @hourly or
// @every are not part of the format.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a standard 5-field cron expression in UTC.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, errors.New("time zone prefixes are not supported")
	}
	return cronParser.Parse(expr)
}

// Schedule parses the profile's upload schedule.
func (p *Profile) Schedule() (cron.Schedule, error) {
	return ParseSchedule(p.UploadSchedule)
}

// Validate checks the fields a profile needs to be scheduled.
func (p *Profile) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&p.UploadSchedule, validation.Required, validation.By(validCron)),
	)
}

func validCron(value any) error {
	expr, _ := value.(string)
	if _, err := ParseSchedule(expr); err != nil {
		return errors.New("must be a standard 5-field cron expression")
	}
	return nil
}

// ProfileOverride requests a one-off run outside the profile's schedule.
type ProfileOverride struct {
	bun.BaseModel `bun:"table:profile_overrides,alias:pov"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ProfileID     uuid.UUID  `bun:"profile_id,notnull,type:uuid" json:"profile_id"`
	RunsAt        time.Time  `bun:"runs_at,notnull" json:"runs_at"`
	Claimed       bool       `bun:"claimed,notnull" json:"claimed"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// OAuthType names the platform an OAuth token set belongs to.
type OAuthType string

const OAuthYoutube OAuthType = "YOUTUBE"

// ParseOAuthType accepts the type name in any case.
func ParseOAuthType(raw string) (OAuthType, error) {
	switch t := OAuthType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case OAuthYoutube:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOAuthType, raw)
}

// ProfileOAuth is the token set a profile uses to reach an upload platform.
// Tokens never leave the backend in JSON.
type ProfileOAuth struct {
	bun.BaseModel `bun:"table:profile_oauth,alias:poa"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ProfileID     uuid.UUID  `bun:"profile_id,notnull,type:uuid" json:"profile_id"`
	OAuthType     OAuthType  `bun:"oauth_type,notnull" json:"oauth_type"`
	RefreshToken  *string    `bun:"refresh_token" json:"-"`
	AuthToken     *string    `bun:"auth_token" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// MarshalJSON reports which tokens are present without exposing them.
func (o ProfileOAuth) MarshalJSON() ([]byte, error) {
	type alias ProfileOAuth
	return json.Marshal(struct {
		alias
		HasRefreshToken bool `json:"has_refresh_token"`
		HasAuthToken    bool `json:"has_auth_token"`
	}{
		alias:           alias(o),
		HasRefreshToken: o.RefreshToken != nil && *o.RefreshToken != "",
		HasAuthToken:    o.AuthToken != nil && *o.AuthToken != "",
	})
}

// UploadPlatform is where a finished video was published.
type UploadPlatform string

const (
	PlatformLocal   UploadPlatform = "LOCAL"
	PlatformYoutube UploadPlatform = "YOUTUBE"
)

// ParseUploadPlatform accepts the platform name in any case.
func ParseUploadPlatform(raw string) (UploadPlatform, error) {
	switch p := UploadPlatform(strings.ToUpper(strings.TrimSpace(raw))); p {
	case PlatformLocal, PlatformYoutube:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, raw)
}

// Upload records where a run's video ended up on one platform.
type Upload struct {
	bun.BaseModel `bun:"table:uploads,alias:upl"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	RunID         uuid.UUID      `bun:"run_id,notnull,type:uuid" json:"run_id"`
	Platform      UploadPlatform `bun:"platform,notnull" json:"platform"`
	GeneratedURL  string         `bun:"generated_url,notnull" json:"generated_url"`
	UploadedAt    time.Time      `bun:"uploaded_at,notnull" json:"uploaded_at"`
}
