package server

import (
	"net/http"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/reddyt/reddyt-admin/runs"
)

func (h *handlers) listConnections(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	if _, err := h.repo.Profiles().FindProfile(c.Context(), id); err != nil {
		return err
	}

	records, err := h.repo.Connections().ListForProfile(c.Context(), id)
	if err != nil {
		return err
	}
	return list(c, records)
}

func (h *handlers) addConnection(c router.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	payload := new(ConnectionRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	oauthType, err := runs.ParseOAuthType(payload.OAuthType)
	if err != nil {
		return err
	}

	if _, err := h.repo.Profiles().FindProfile(c.Context(), id); err != nil {
		return err
	}

	conn, err := h.repo.Connections().Add(c.Context(), &runs.ProfileOAuth{
		ProfileID:    id,
		OAuthType:    oauthType,
		RefreshToken: payload.RefreshToken,
		AuthToken:    payload.AuthToken,
	})
	if err != nil {
		return err
	}

	h.logger.Info("oauth connection added", "profile", id, "oauth_type", conn.OAuthType)
	return created(c, conn)
}

func (h *handlers) updateConnection(c router.Context) error {
	id, oauthType, err := connectionParams(c)
	if err != nil {
		return err
	}

	payload := new(TokensRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	conn, err := h.repo.Connections().UpdateTokens(c.Context(), id, oauthType, payload.RefreshToken, payload.AuthToken)
	if err != nil {
		return err
	}

	h.logger.Info("oauth tokens updated", "profile", id, "oauth_type", oauthType)
	return c.JSON(router.StatusOK, conn)
}

func (h *handlers) removeConnection(c router.Context) error {
	id, oauthType, err := connectionParams(c)
	if err != nil {
		return err
	}

	if err := h.repo.Connections().Remove(c.Context(), id, oauthType); err != nil {
		return err
	}

	h.logger.Info("oauth connection removed", "profile", id, "oauth_type", oauthType)
	return c.Status(http.StatusNoContent).SendString("")
}

func connectionParams(c router.Context) (id uuid.UUID, oauthType runs.OAuthType, err error) {
	if id, err = paramID(c); err != nil {
		return
	}
	oauthType, err = runs.ParseOAuthType(c.Param("type"))
	return
}
