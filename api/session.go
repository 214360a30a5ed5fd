package api

import (
	"context"
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/session"
	"github.com/gin-gonic/gin"
)

const nothingToRestore = "nothing to restore"

type SessionStore interface {
	SaveSearchSession(ctx context.Context, clientID string, results []domain.FlightOffer, params domain.SearchParams) error
	RestoreSearchSession(ctx context.Context, clientID string) (session.SearchSession, bool, error)
	ClearSearchSession(ctx context.Context, clientID string) error
	SaveSelectedBookingTarget(ctx context.Context, clientID string, flight domain.FlightOffer, params domain.SearchParams) error
	RestoreSelectedBookingTarget(ctx context.Context, clientID string) (session.BookingTarget, bool, error)
	ClearSelectedBookingTarget(ctx context.Context, clientID string) error
}

// SessionHandler exposes the client session store. The client is
// identified by the X-Client-Session header.
type SessionHandler struct {
	store SessionStore
}

func NewSessionHandler(store SessionStore) *SessionHandler {
	return &SessionHandler{store: store}
}

func (h *SessionHandler) Register(router *gin.RouterGroup) {
	router.PUT("/search", h.saveSearch)
	router.GET("/search", h.restoreSearch)
	router.DELETE("/search", h.clearSearch)
	router.PUT("/booking-target", h.saveTarget)
	router.GET("/booking-target", h.restoreTarget)
	router.DELETE("/booking-target", h.clearTarget)
}

func (h *SessionHandler) saveSearch(c *gin.Context) {
	var req session.SearchSession
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.store.SaveSearchSession(c.Request.Context(), clientID(c), req.Results, req.Params); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "search session saved", nil)
}

func (h *SessionHandler) restoreSearch(c *gin.Context) {
	s, found, err := h.store.RestoreSearchSession(c.Request.Context(), clientID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if !found {
		okMessage(c, nothingToRestore, nil)
		return
	}
	ok(c, http.StatusOK, s)
}

func (h *SessionHandler) clearSearch(c *gin.Context) {
	if err := h.store.ClearSearchSession(c.Request.Context(), clientID(c)); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "search session cleared", nil)
}

func (h *SessionHandler) saveTarget(c *gin.Context) {
	var req session.BookingTarget
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.store.SaveSelectedBookingTarget(c.Request.Context(), clientID(c), req.Flight, req.Params); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "booking target saved", nil)
}

func (h *SessionHandler) restoreTarget(c *gin.Context) {
	t, found, err := h.store.RestoreSelectedBookingTarget(c.Request.Context(), clientID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if !found {
		okMessage(c, nothingToRestore, nil)
		return
	}
	ok(c, http.StatusOK, t)
}

func (h *SessionHandler) clearTarget(c *gin.Context) {
	if err := h.store.ClearSelectedBookingTarget(c.Request.Context(), clientID(c)); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "booking target cleared", nil)
}
