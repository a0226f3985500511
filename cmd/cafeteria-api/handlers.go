package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/cafeteria/internal/httpx"
	"github.com/MikeMC777/cafeteria/internal/menu"
	"github.com/MikeMC777/cafeteria/internal/notify"
	"github.com/MikeMC777/cafeteria/internal/order"
	"github.com/MikeMC777/cafeteria/internal/payment"
	"github.com/MikeMC777/cafeteria/internal/settings"
	"github.com/MikeMC777/cafeteria/internal/user"
	"github.com/MikeMC777/cafeteria/internal/validation"
)

func newRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(a.log))

	r.GET("/healthz", a.health.Handler())

	v1 := r.Group("/v1")
	v1.GET("/menu", listMenuHandler(a))
	v1.GET("/menu/items/:id", getMenuItemHandler(a))
	v1.GET("/counter/verify/:code", httpx.CounterKey(a.counterKeyHash), verifyPickupHandler(a))

	auth := v1.Group("", httpx.Identity())

	auth.POST("/profiles/me", provisionHandler(a))
	auth.GET("/profiles/me", getProfileHandler(a))
	auth.PUT("/profiles/:id/role", setRoleHandler(a))

	auth.POST("/menu/categories", createCategoryHandler(a))
	auth.PUT("/menu/categories/:id", updateCategoryHandler(a))
	auth.DELETE("/menu/categories/:id", deleteCategoryHandler(a))
	auth.POST("/menu/items", createMenuItemHandler(a))
	auth.PUT("/menu/items/:id", updateMenuItemHandler(a))
	auth.DELETE("/menu/items/:id", deleteMenuItemHandler(a))

	auth.POST("/orders", placeOrderHandler(a))
	auth.GET("/orders", listMyOrdersHandler(a))
	auth.GET("/orders/:id", getOrderHandler(a))
	auth.PUT("/orders/:id/status", transitionOrderHandler(a))
	auth.POST("/orders/:id/cancel", cancelOrderHandler(a))
	auth.GET("/queue", listQueueHandler(a))

	auth.POST("/orders/:id/payment", recordPaymentHandler(a))
	auth.GET("/orders/:id/payment", getPaymentHandler(a))
	auth.PUT("/payments/:id/status", updatePaymentStatusHandler(a))

	auth.GET("/notifications", listNotificationsHandler(a))
	auth.GET("/notifications/unread-count", unreadCountHandler(a))
	auth.POST("/notifications/read", markReadHandler(a))
	auth.POST("/devices", registerDeviceHandler(a))

	auth.GET("/settings", getSettingsHandler(a))
	auth.PUT("/settings", updateSettingsHandler(a))

	return r
}

// bindOptional is BindAndValidate for endpoints whose body may be omitted.
func bindOptional(c *gin.Context, a *app, out any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return validation.BindAndValidate(c, out, a.validate)
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

// ===== profiles =====

func provisionHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req user.ProvisionRequest
		if err := bindOptional(c, a, &req); err != nil {
			return
		}
		name := req.DisplayName
		if name == "" {
			name = c.GetHeader(httpx.HeaderUserName)
		}
		p, err := a.users.Provision(c.Request.Context(), httpx.IdentityOf(c), name, req.Email)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func getProfileHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.users.GetProfile(c.Request.Context(), httpx.IdentityOf(c))
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func setRoleHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req user.SetRoleRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		p, err := a.users.SetRole(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"), req.Role)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// ===== menu =====

func listMenuHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		sections, err := a.catalog.ListMenu(c.Request.Context())
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": sections})
	}
}

func getMenuItemHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		it, err := a.catalog.GetItem(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, it)
	}
}

func createCategoryHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req menu.CreateCategoryRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		cat, err := a.catalog.CreateCategory(c.Request.Context(), httpx.IdentityOf(c), req)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusCreated, cat)
	}
}

func updateCategoryHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req menu.UpdateCategoryRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		cat, err := a.catalog.UpdateCategory(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"), req)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

func deleteCategoryHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.catalog.DeleteCategory(c.Request.Context(), httpx.IdentityOf(c), c.Param("id")); err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createMenuItemHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req menu.CreateItemRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		it, err := a.catalog.CreateItem(c.Request.Context(), httpx.IdentityOf(c), req)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusCreated, it)
	}
}

func updateMenuItemHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req menu.UpdateItemRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		it, err := a.catalog.UpdateItem(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"), req)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, it)
	}
}

func deleteMenuItemHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.catalog.DeleteItem(c.Request.Context(), httpx.IdentityOf(c), c.Param("id")); err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ===== orders =====

func placeOrderHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		o, created, err := a.orders.PlaceOrder(c.Request.Context(), httpx.IdentityOf(c), req, c.GetHeader(httpx.HeaderIdempotency))
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		c.JSON(status, o)
	}
}

func listMyOrdersHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 20)
		offset := queryInt(c, "offset", 0)
		orders, err := a.orders.ListMine(c.Request.Context(), httpx.IdentityOf(c), limit, offset)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		if orders == nil {
			orders = []order.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"limit": limit, "offset": offset, "items": orders})
	}
}

func getOrderHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := a.orders.GetOrder(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"))
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func transitionOrderHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.TransitionRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		o, err := a.orders.TransitionStatus(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"), req.Status, req.Note)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func cancelOrderHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CancelRequest
		if err := bindOptional(c, a, &req); err != nil {
			return
		}
		o, err := a.orders.Cancel(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"), req.Reason)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// listQueueHandler accepts ?status=placed&status=ready or ?status=placed,ready.
func listQueueHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter []order.Status
		for _, raw := range c.QueryArray("status") {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					filter = append(filter, order.Status(s))
				}
			}
		}
		orders, err := a.orders.ListQueue(c.Request.Context(), httpx.IdentityOf(c), filter)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		if orders == nil {
			orders = []order.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"items": orders})
	}
}

// ===== payments =====

func recordPaymentHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.RecordRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		p, err := a.payments.Record(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"), req)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func getPaymentHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.payments.ForOrder(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"))
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func updatePaymentStatusHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		p, err := a.payments.UpdateStatus(c.Request.Context(), httpx.IdentityOf(c), c.Param("id"), req.Status)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// ===== notifications =====

func listNotificationsHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		unread := c.Query("unread") == "true"
		ns, err := a.inbox.List(c.Request.Context(), httpx.IdentityOf(c), unread, queryInt(c, "limit", 0))
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		if ns == nil {
			ns = []notify.Notification{}
		}
		c.JSON(http.StatusOK, gin.H{"items": ns})
	}
}

func unreadCountHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := a.inbox.UnreadCount(c.Request.Context(), httpx.IdentityOf(c))
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": n})
	}
}

func markReadHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notify.MarkReadRequest
		if err := bindOptional(c, a, &req); err != nil {
			return
		}
		n, err := a.inbox.MarkRead(c.Request.Context(), httpx.IdentityOf(c), req.IDs)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked": n})
	}
}

func registerDeviceHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notify.RegisterTokenRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		t, err := a.inbox.RegisterToken(c.Request.Context(), httpx.IdentityOf(c), req)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// ===== settings =====

func getSettingsHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, a.settings.Current(c.Request.Context()))
	}
}

func updateSettingsHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req settings.UpdateRequest
		if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
			return
		}
		s, err := a.settings.Update(c.Request.Context(), httpx.IdentityOf(c), req)
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// ===== pickup counter =====

func verifyPickupHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := a.orders.VerifyPickup(c.Request.Context(), c.Param("code"))
		if err != nil {
			httpx.WriteError(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, order.Summarize(o))
	}
}
