package runs

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeFrozenState  = "RUN_STATE_FROZEN"
	textCodeRunNotFound  = "RUN_NOT_FOUND"
	textCodeStaleRun     = "RUN_VERSION_CONFLICT"
	textCodeUnknownState = "RUN_STATE_UNKNOWN"
	textCodeNoProfile    = "PROFILE_NOT_FOUND"
	textCodeInvalid      = "PROFILE_INVALID"
	textCodeNameTaken    = "PROFILE_NAME_TAKEN"
	textCodeOAuthType    = "OAUTH_TYPE_UNKNOWN"
	textCodeOAuthExists  = "OAUTH_CONNECTION_EXISTS"
	textCodeNoOAuth      = "OAUTH_CONNECTION_NOT_FOUND"
	textCodePlatform     = "UPLOAD_PLATFORM_UNKNOWN"
	textCodeUploadExists = "UPLOAD_EXISTS"
)

// ErrFrozenState is returned when a terminal run is asked to transition.
var ErrFrozenState = goerrors.New("run state is frozen", goerrors.CategoryConflict).
	WithTextCode(textCodeFrozenState).
	WithCode(goerrors.CodeConflict)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = goerrors.New("run not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeRunNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrStaleRun is returned when a run changed since it was loaded.
var ErrStaleRun = goerrors.New("run was modified concurrently", goerrors.CategoryConflict).
	WithTextCode(textCodeStaleRun).
	WithCode(goerrors.CodeConflict)

// ErrUnknownState is returned for state names outside the lifecycle.
var ErrUnknownState = goerrors.New("unknown run state", goerrors.CategoryValidation).
	WithTextCode(textCodeUnknownState).
	WithCode(goerrors.CodeBadRequest)

// ErrProfileNotFound is returned when a profile id has no row.
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeNoProfile).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidProfile is returned when a profile fails validation.
var ErrInvalidProfile = goerrors.New("profile is invalid", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrProfileExists is returned when another profile already uses the name.
var ErrProfileExists = goerrors.New("profile name already in use", goerrors.CategoryConflict).
	WithTextCode(textCodeNameTaken).
	WithCode(goerrors.CodeConflict)

var ErrUnknownOAuthType = goerrors.New("unknown oauth type", goerrors.CategoryValidation).
	WithTextCode(textCodeOAuthType).
	WithCode(goerrors.CodeBadRequest)

// ErrConnectionExists is returned when a profile already holds a token set
// for the oauth type.
var ErrConnectionExists = goerrors.New("oauth connection already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeOAuthExists).
	WithCode(goerrors.CodeConflict)

var ErrConnectionNotFound = goerrors.New("oauth connection not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeNoOAuth).
	WithCode(goerrors.CodeNotFound)

var ErrUnknownPlatform = goerrors.New("unknown upload platform", goerrors.CategoryValidation).
	WithTextCode(textCodePlatform).
	WithCode(goerrors.CodeBadRequest)

// ErrUploadExists is returned when a run was already recorded on a platform.
var ErrUploadExists = goerrors.New("upload already recorded for platform", goerrors.CategoryConflict).
	WithTextCode(textCodeUploadExists).
	WithCode(goerrors.CodeConflict)
