package handler

import (
	"net/http"

	"orderengine/internal/config"
	"orderengine/internal/middleware"
	"orderengine/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ExchangeReturnHandler struct {
	uc *usecase.ExchangeReturnUsecase
}

func NewExchangeReturnHandler(uc *usecase.ExchangeReturnUsecase) *ExchangeReturnHandler {
	return &ExchangeReturnHandler{uc: uc}
}

type ExchangeReturnCreateRequest struct {
	OrderID int64  `json:"order_id"`
	Type    string `json:"type"`
	Reason  string `json:"reason"`
}

type ExchangeReturnCreateResponse struct {
	ID int64 `json:"id"`
}

type ExchangeReturnStatusUpdateRequest struct {
	Status       string  `json:"status"`
	AdminComment *string `json:"admin_comment"`
}

func (h *ExchangeReturnHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/exchange-returns")
	g.Use(middleware.AuthJWT(cfg))
	g.POST("", h.create)
	g.GET("/my", h.listMine)

	admin := e.Group("/admin/exchange-returns")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())
	admin.GET("", h.listAll)
	admin.PATCH("/:id/status", h.updateStatus)
}

func (h *ExchangeReturnHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ExchangeReturnCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	id, err := h.uc.Create(c.Request().Context(), userID, usecase.CreateExchangeReturnInput{
		OrderID: req.OrderID,
		Type:    req.Type,
		Reason:  req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ExchangeReturnCreateResponse{ID: id})
}

func (h *ExchangeReturnHandler) listMine(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.ListMine(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ExchangeReturnHandler) listAll(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.ListAll(c.Request().Context(), adminID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ExchangeReturnHandler) updateStatus(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req ExchangeReturnStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.UpdateStatus(c.Request().Context(), adminID, id, usecase.UpdateExchangeReturnStatusInput{
		Status:       req.Status,
		AdminComment: req.AdminComment,
	}); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}
