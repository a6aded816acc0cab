package server

import (
	"github.com/goliatone/go-router"
	"github.com/reddyt/reddyt-admin/runs"
)

func (h *handlers) listUploads(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	if _, err := h.repo.Runs().GetRun(c.Context(), id); err != nil {
		return err
	}

	records, err := h.repo.Uploads().ListForRun(c.Context(), id)
	if err != nil {
		return err
	}
	return list(c, records)
}

// recordUpload stores where a run's video was published.
func (h *handlers) recordUpload(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	payload := new(UploadRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	platform, err := runs.ParseUploadPlatform(payload.Platform)
	if err != nil {
		return err
	}

	upload, err := h.repo.Uploads().Record(c.Context(), &runs.Upload{
		RunID:        id,
		Platform:     platform,
		GeneratedURL: payload.GeneratedURL,
		UploadedAt:   payload.UploadedAt,
	})
	if err != nil {
		return err
	}

	h.logger.Info("upload recorded", "run", id, "platform", upload.Platform)
	return created(c, upload)
}
