package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"dispatch-service/internal/models"
	"dispatch-service/internal/service"
	"dispatch-service/internal/store"
	"dispatch-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orchestrator *service.DispatchOrchestrator
	inventory    *service.InventoryLedger
	routes       *service.AgentRouteService
	store        *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orchestrator *service.DispatchOrchestrator,
	inventory *service.InventoryLedger,
	routes *service.AgentRouteService,
	store *store.Store,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		inventory:    inventory,
		routes:       routes,
		store:        store,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.POST("/orders/:id/agent", h.assignDeliveryAgent)
		v1.POST("/orders/:id/van", h.assignVan)
		v1.POST("/orders/:id/store", h.assignStore)

		v1.POST("/stores", h.createStore)
		v1.GET("/stores/:id", h.getStore)
		v1.GET("/stores/:id/orders", h.getStoreOrders)

		v1.POST("/warehouses", h.createWarehouse)
		v1.GET("/warehouses/:id/orders", h.getWarehouseOrders)
		v1.GET("/warehouses/:id/inventory", h.getWarehouseInventory)
		v1.GET("/warehouses/:id/products", h.getWarehouseProducts)
		v1.GET("/warehouses/:id/vehicles", h.getWarehouseVehicles)
		v1.GET("/warehouses/:id/agents", h.getWarehouseAgents)

		v1.POST("/products", h.createProduct)
		v1.PUT("/inventory/:warehouseId/:productId", h.setStock)

		v1.POST("/vehicles", h.createVehicle)
		v1.GET("/vehicles/:id", h.getVehicle)

		v1.POST("/agents", h.createAgent)
		v1.POST("/agents/:id/vehicle", h.bindVehicle)
		v1.POST("/agents/:id/route", h.buildAgentRoute)
		v1.GET("/agents/:id/route", h.getAgentRoute)
		v1.POST("/agents/:id/route/progress", h.updateRouteProgress)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// errorStatus maps the service error taxonomy to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnprocessable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

// createOrder handles order creation with immediate auto-approval
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, approved, err := h.orchestrator.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":    order,
		"approved": approved,
	})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.store.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus handles manual status transitions
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.orchestrator.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

type assignAgentRequest struct {
	// AgentID empty clears the order's agent binding.
	AgentID string `json:"agent_id"`
}

// assignDeliveryAgent binds or clears an order's delivery agent
func (h *Handler) assignDeliveryAgent(c *gin.Context) {
	var req assignAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.orchestrator.AssignDeliveryAgent(c.Request.Context(), c.Param("id"), req.AgentID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// assignVan retries van assignment for a confirmed order
func (h *Handler) assignVan(c *gin.Context) {
	van, err := h.orchestrator.AssignVan(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, van)
}

type assignStoreRequest struct {
	StoreID string `json:"store_id" binding:"required"`
}

// assignStore picks one store for an order
func (h *Handler) assignStore(c *gin.Context) {
	var req assignStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.orchestrator.AssignStoreToOrder(c.Request.Context(), c.Param("id"), req.StoreID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createStoreRequest struct {
	Name     string          `json:"name" binding:"required"`
	Address  models.Address  `json:"address" binding:"required"`
	Location models.GeoPoint `json:"location"`
}

// createStore onboards a retail store
func (h *Handler) createStore(c *gin.Context) {
	var req createStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	st := &models.Store{
		StoreID:  uuid.New().String(),
		Name:     req.Name,
		Address:  req.Address,
		Location: req.Location,
	}
	if err := h.store.CreateStore(c.Request.Context(), st); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// getStore handles get store by ID
func (h *Handler) getStore(c *gin.Context) {
	st, err := h.store.GetStore(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// getStoreOrders lists a store's orders
func (h *Handler) getStoreOrders(c *gin.Context) {
	orders, err := h.store.GetOrdersByStore(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type createWarehouseRequest struct {
	Name     string          `json:"name" binding:"required"`
	Address  models.Address  `json:"address"`
	Location models.GeoPoint `json:"location"`
}

// createWarehouse onboards a fulfillment center
func (h *Handler) createWarehouse(c *gin.Context) {
	var req createWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	w := &models.Warehouse{
		WarehouseID: uuid.New().String(),
		Name:        req.Name,
		Address:     req.Address,
		Location:    req.Location,
	}
	if err := h.store.CreateWarehouse(c.Request.Context(), w); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// getWarehouseOrders lists a warehouse's orders with their store names
func (h *Handler) getWarehouseOrders(c *gin.Context) {
	ctx := c.Request.Context()
	orders, err := h.store.GetOrdersByWarehouse(ctx, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	type orderWithStore struct {
		models.Order
		StoreName string `json:"store_name,omitempty"`
	}

	// Store names are denormalized into the listing so dispatchers see
	// where each order is headed without extra lookups.
	names := make(map[string]string)
	enriched := make([]orderWithStore, 0, len(orders))
	for _, o := range orders {
		name, ok := names[o.StoreID]
		if !ok {
			if st, err := h.store.GetStore(ctx, o.StoreID); err == nil {
				name = st.Name
			}
			names[o.StoreID] = name
		}
		enriched = append(enriched, orderWithStore{Order: o, StoreName: name})
	}

	c.JSON(http.StatusOK, gin.H{"orders": enriched})
}

// getWarehouseInventory lists a warehouse's inventory records
func (h *Handler) getWarehouseInventory(c *gin.Context) {
	records, err := h.store.GetInventoryByWarehouse(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inventory": records})
}

// getWarehouseProducts lists a warehouse's catalog
func (h *Handler) getWarehouseProducts(c *gin.Context) {
	products, err := h.store.GetProductsByWarehouse(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getWarehouseVehicles lists a warehouse's fleet, optionally filtered by status
func (h *Handler) getWarehouseVehicles(c *gin.Context) {
	fleet, err := h.store.GetVehiclesByWarehouse(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if status := c.Query("status"); status != "" {
		filtered := fleet[:0]
		for _, v := range fleet {
			if v.Status == status {
				filtered = append(filtered, v)
			}
		}
		fleet = filtered
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": fleet})
}

// getWarehouseAgents lists a warehouse's delivery agents
func (h *Handler) getWarehouseAgents(c *gin.Context) {
	agents, err := h.store.GetAgentsByWarehouse(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

type createProductRequest struct {
	WarehouseID  string `json:"warehouse_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Price        int64  `json:"price" binding:"required,min=1"`
	InitialStock int    `json:"initial_stock" binding:"min=0"`
}

// createProduct onboards a product with its zeroed inventory record
func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	p := &models.Product{
		ProductID:   uuid.New().String(),
		WarehouseID: req.WarehouseID,
		Name:        req.Name,
		Price:       req.Price,
	}
	if err := h.store.CreateProduct(c.Request.Context(), p, req.InitialStock); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

type setStockRequest struct {
	Stock int `json:"stock" binding:"min=0"`
}

// setStock overwrites a warehouse's physical stock count for a product
func (h *Handler) setStock(c *gin.Context) {
	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	warehouseID := c.Param("warehouseId")
	if err := h.store.SetStock(c.Request.Context(), warehouseID, c.Param("productId"), req.Stock); err != nil {
		abortWithError(c, err)
		return
	}

	// Refresh the Redis mirror so the fast path sees the new count.
	if err := h.inventory.SyncWarehouseToRedis(c.Request.Context(), warehouseID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createVehicleRequest struct {
	WarehouseID string `json:"warehouse_id" binding:"required"`
	VehicleType string `json:"vehicle_type" binding:"required"`
	Capacity    int    `json:"capacity" binding:"required,min=1"`
}

// createVehicle onboards a delivery van
func (h *Handler) createVehicle(c *gin.Context) {
	var req createVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	v := &models.Vehicle{
		VehicleID:   uuid.New().String(),
		WarehouseID: req.WarehouseID,
		VehicleType: req.VehicleType,
		Capacity:    req.Capacity,
	}
	if err := h.store.CreateVehicle(c.Request.Context(), v); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// getVehicle handles get vehicle by ID
func (h *Handler) getVehicle(c *gin.Context) {
	v, err := h.store.GetVehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type createAgentRequest struct {
	WarehouseID string `json:"warehouse_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
}

// createAgent onboards a delivery agent
func (h *Handler) createAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	a := &models.DeliveryAgent{
		AgentID:     uuid.New().String(),
		WarehouseID: req.WarehouseID,
		Name:        req.Name,
	}
	if err := h.store.CreateAgent(c.Request.Context(), a); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

type bindVehicleRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required"`
}

// bindVehicle pairs an agent with a vehicle (1:1)
func (h *Handler) bindVehicle(c *gin.Context) {
	var req bindVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.store.BindVehicleToAgent(c.Request.Context(), req.VehicleID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type buildRouteRequest struct {
	WarehouseID string `json:"warehouse_id" binding:"required"`
}

// buildAgentRoute rebuilds an agent's stop sequence
func (h *Handler) buildAgentRoute(c *gin.Context) {
	var req buildRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	stops, err := h.routes.AssignStoresToRoute(c.Request.Context(), c.Param("id"), req.WarehouseID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": stops})
}

// getAgentRoute returns the agent's persisted route
func (h *Handler) getAgentRoute(c *gin.Context) {
	stops, err := h.routes.GetAgentRoute(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": stops})
}

type routeProgressRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// updateRouteProgress marks the stop holding the order complete
func (h *Handler) updateRouteProgress(c *gin.Context) {
	var req routeProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.routes.UpdateDeliveryProgress(c.Request.Context(), c.Param("id"), req.OrderID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
