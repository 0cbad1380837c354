package search

import (
	"github.com/labstack/echo/v4"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, client remote.Client) {
	searchService := NewService(db, client)

	h := &handler{
		searchService: searchService,
	}

	e.GET("/search", h.search)
}
