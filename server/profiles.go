package server

import (
	"github.com/goliatone/go-router"
	"github.com/reddyt/reddyt-admin/runs"
)

func (h *handlers) listProfiles(c router.Context) error {
	records, err := h.repo.Profiles().ListProfiles(c.Context())
	if err != nil {
		return err
	}
	return list(c, records)
}

func (h *handlers) createProfile(c router.Context) error {
	payload := new(ProfileRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	profile := &runs.Profile{}
	payload.Apply(profile)

	record, err := h.repo.Profiles().Register(c.Context(), profile)
	if err != nil {
		return err
	}

	h.logger.Info("profile created", "profile", record.ID, "name", record.Name)
	return created(c, record)
}

func (h *handlers) getProfile(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	profile, err := h.repo.Profiles().FindProfile(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, profile)
}

func (h *handlers) updateProfile(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	payload := new(ProfileRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	profile, err := h.repo.Profiles().FindProfile(c.Context(), id)
	if err != nil {
		return err
	}
	payload.Apply(profile)

	updated, err := h.repo.Profiles().SaveProfile(c.Context(), profile)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, updated)
}

func (h *handlers) pauseProfile(paused bool) router.HandlerFunc {
	return func(c router.Context) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		profile, err := h.repo.Profiles().SetPaused(c.Context(), id, paused)
		if err != nil {
			return err
		}

		h.logger.Info("profile schedule toggled", "profile", profile.ID, "paused", paused)
		return c.JSON(router.StatusOK, profile)
	}
}

func (h *handlers) listProfileRuns(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	if _, err := h.repo.Profiles().FindProfile(c.Context(), id); err != nil {
		return err
	}

	records, err := h.repo.Runs().List(c.Context(), runs.RunFilter{
		ProfileID: id,
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	return list(c, records)
}

// createRun starts a manual run in Idling, outside the profile's schedule.
func (h *handlers) createRun(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	if _, err := h.repo.Profiles().FindProfile(c.Context(), id); err != nil {
		return err
	}

	run, err := h.repo.Runs().Create(c.Context(), runs.NewRun(id, h.now()).WithSource(runs.SourceManual))
	if err != nil {
		return err
	}

	h.logger.Info("manual run created", "profile", id, "run", run.ID)
	return created(c, run)
}

func (h *handlers) listOverrides(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	if _, err := h.repo.Profiles().FindProfile(c.Context(), id); err != nil {
		return err
	}

	records, err := h.repo.Overrides().ListForProfile(c.Context(), id)
	if err != nil {
		return err
	}
	return list(c, records)
}

func (h *handlers) createOverride(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	payload := new(OverrideRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	if _, err := h.repo.Profiles().FindProfile(c.Context(), id); err != nil {
		return err
	}

	override, err := h.repo.Overrides().Create(c.Context(), &runs.ProfileOverride{
		ProfileID: id,
		RunsAt:    payload.RunsAt,
	})
	if err != nil {
		return err
	}

	h.logger.Info("override created", "profile", id, "runs_at", override.RunsAt)
	return created(c, override)
}
