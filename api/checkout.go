package api

import (
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/service/payment"
	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	resolver payment.ResolverUseCase
	sessions SessionStore
}

func NewCheckoutHandler(resolver payment.ResolverUseCase, sessions SessionStore) *CheckoutHandler {
	return &CheckoutHandler{resolver: resolver, sessions: sessions}
}

func (h *CheckoutHandler) Register(router *gin.RouterGroup) {
	router.GET("/:userId/payment-options", h.options)
	router.POST("/:userId/submit", h.submit)
	router.DELETE("/:userId/payment-options/:ref", h.deleteOption)
}

func (h *CheckoutHandler) options(c *gin.Context) {
	checkout, err := h.resolver.Candidates(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, checkout)
}

// submit records the booking payment. On success the client's selected
// booking target is cleared so it cannot leak into a later booking.
func (h *CheckoutHandler) submit(c *gin.Context) {
	var req payment.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.resolver.Submit(c.Request.Context(), c.Param("userId"), req)
	if err != nil {
		fail(c, err)
		return
	}

	if id := clientID(c); id != "" && h.sessions != nil {
		if err := h.sessions.ClearSelectedBookingTarget(c.Request.Context(), id); err != nil {
			logger.GetLogger("api").Warnw("clear booking target failed", "client_id", id, "error", err)
		}
	}
	ok(c, http.StatusCreated, result)
}

// deleteOption removes a payment option from its source and returns the
// updated checkout. The option stays removed even when the source fails.
func (h *CheckoutHandler) deleteOption(c *gin.Context) {
	ctx := c.Request.Context()
	checkout, err := h.resolver.Candidates(ctx, c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}

	ref := c.Param("ref")
	if _, found := checkout.Find(ref); !found {
		fail(c, domain.NotFoundError{Entity: "payment option", ID: ref})
		return
	}
	if err := h.resolver.DeleteCandidate(ctx, checkout, ref); err != nil {
		logger.GetLogger("api").Warnw("payment option removed locally only", "ref", ref, "error", err)
		okMessage(c, "payment option could not be deleted at its source", checkout)
		return
	}
	okMessage(c, "payment option deleted", checkout)
}
