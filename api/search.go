package api

import (
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/service/search"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	service search.SearchUseCase
}

func NewSearchHandler(service search.SearchUseCase) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.search)
	router.GET("/:searchId", h.results)
}

func (h *SearchHandler) search(c *gin.Context) {
	var params domain.SearchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.Search(c.Request.Context(), search.SearchInput{Params: params, ClientID: clientID(c)})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

func (h *SearchHandler) results(c *gin.Context) {
	result, err := h.service.Results(c.Request.Context(), c.Param("searchId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}
