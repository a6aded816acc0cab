package server

import (
	"fmt"

	"github.com/goliatone/go-router"
	"github.com/reddyt/reddyt-admin/runs"
)

func (h *handlers) listRuns(c router.Context) error {
	active, err := queryBool(c, "active")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	filter := runs.RunFilter{
		Active: active,
		Limit:  limit,
	}

	if raw := c.Query("state", ""); raw != "" {
		state, err := runs.ParseRunState(raw)
		if err != nil {
			return err
		}
		filter.State = state
	}

	if raw := c.Query("source", ""); raw != "" {
		source := runs.RunSource(raw)
		if !source.Valid() {
			return fmt.Errorf("%w: source=%q", ErrInvalidQuery, raw)
		}
		filter.Source = source
	}

	profileID, err := queryID(c, "profile_id")
	if err != nil {
		return err
	}
	filter.ProfileID = profileID

	records, err := h.repo.Runs().List(c.Context(), filter)
	if err != nil {
		return err
	}
	return list(c, records)
}

func (h *handlers) getRun(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	run, err := h.repo.Runs().GetRun(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, run)
}

func (h *handlers) advanceRun(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	run, err := h.machine.Advance(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, run)
}

func (h *handlers) failRun(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	payload := new(FailRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	run, err := h.machine.Fail(c.Context(), id, payload.Message)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, run)
}
