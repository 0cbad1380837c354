package config

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	configService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	userConfig, err := h.configService.RetrieveUserConfig()
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, userConfig))
}

func (h *handler) update(c echo.Context) error {
	params := UpdateConfigPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userConfig, err := h.configService.RetrieveUserConfig()
	if err != nil {
		return errors.WithStack(err)
	}

	changed := false

	if params.SyncIntervalMinutes != nil && userConfig.SyncIntervalMinutes != *params.SyncIntervalMinutes {
		userConfig.SyncIntervalMinutes = *params.SyncIntervalMinutes
		changed = true
	}
	if params.SyncOnStartup != nil && userConfig.SyncOnStartup != *params.SyncOnStartup {
		userConfig.SyncOnStartup = *params.SyncOnStartup
		changed = true
	}
	if params.DownloadPDFs != nil && userConfig.DownloadPDFs != *params.DownloadPDFs {
		userConfig.DownloadPDFs = *params.DownloadPDFs
		changed = true
	}

	if changed {
		if err := h.configService.UpdateUserConfig(userConfig); err != nil {
			return errors.WithStack(err)
		}
	}

	return errors.WithStack(c.JSON(http.StatusOK, userConfig))
}
