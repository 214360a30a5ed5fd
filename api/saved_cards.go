package api

import (
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/service/vault"
	"github.com/gin-gonic/gin"
)

type SavedCardHandler struct {
	service vault.VaultUseCase
}

func NewSavedCardHandler(service vault.VaultUseCase) *SavedCardHandler {
	return &SavedCardHandler{service: service}
}

func (h *SavedCardHandler) Register(router *gin.RouterGroup) {
	router.GET("/:userId", h.list)
	router.POST("", h.create)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
	router.PUT("/:id/set-default", h.setDefault)
	router.PUT("/:id/update-last-used", h.touchLastUsed)
}

// list returns the owner's unexpired cards, default first.
func (h *SavedCardHandler) list(c *gin.Context) {
	cards, err := h.service.List(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, cards)
}

func (h *SavedCardHandler) create(c *gin.Context) {
	var req vault.SaveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	inst, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, inst)
}

func (h *SavedCardHandler) update(c *gin.Context) {
	var req vault.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	inst, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, inst)
}

func (h *SavedCardHandler) delete(c *gin.Context) {
	if _, err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "card deleted", nil)
}

func (h *SavedCardHandler) setDefault(c *gin.Context) {
	inst, err := h.service.SetDefault(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, inst)
}

func (h *SavedCardHandler) touchLastUsed(c *gin.Context) {
	inst, err := h.service.TouchLastUsed(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, inst)
}
