package config

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	err := validation.Errors{
		"admin": validation.ValidateStruct(&c.Admin,
			validation.Field(&c.Admin.Email, validation.Required, is.Email, validation.By(noColon)),
			validation.Field(&c.Admin.Password, validation.Required),
		),
		"auth": validation.ValidateStruct(&c.Auth,
			validation.Field(&c.Auth.CookieName, validation.Required),
			validation.Field(&c.Auth.TokenTTLSeconds, validation.Required, validation.Min(1)),
		),
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.DSN, validation.Required),
		),
		"worker": validation.ValidateStruct(&c.Worker,
			validation.Field(&c.Worker.Workers, validation.Required, validation.Min(1)),
			validation.Field(&c.Worker.QueueSize, validation.Required, validation.Min(1)),
			validation.Field(&c.Worker.TickSeconds, validation.Required, validation.Min(1)),
			validation.Field(&c.Worker.ScheduleSeconds, validation.Required, validation.Min(1)),
		),
		"logging": validation.ValidateStruct(&c.Logging,
			validation.Field(&c.Logging.Level, validation.In("debug", "info", "warn", "error")),
			validation.Field(&c.Logging.Format, validation.In("text", "json")),
		),
		"bind": validation.Validate(c.Bind, validation.Required),
	}.Filter()

	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Basic credentials split on the first colon, so the email cannot hold one.
func noColon(value any) error {
	s, _ := value.(string)
	if strings.Contains(s, ":") {
		return errors.New("must not contain ':'")
	}
	return nil
}
