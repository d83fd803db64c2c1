package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"item-simulator/server/audit"
	"item-simulator/server/game/economy"
	mw "item-simulator/server/middleware"
	"item-simulator/server/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ItemHandler handles catalog and economy REST endpoints.
type ItemHandler struct {
	db    *gorm.DB
	econ  *economy.Service
	audit *audit.Service
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(db *gorm.DB, econ *economy.Service, auditSvc *audit.Service) *ItemHandler {
	return &ItemHandler{db: db, econ: econ, audit: auditSvc}
}

type itemStat struct {
	Health *int `json:"health"`
	Power  *int `json:"power"`
}

type createItemRequest struct {
	ItemCode *int      `json:"item_code" binding:"required"`
	Name     string    `json:"name" binding:"required,max=64"`
	Stat     *itemStat `json:"stat" binding:"required"`
	Price    *int64    `json:"price" binding:"required"`
}

// Create handles POST /items/create-item.
func (h *ItemHandler) Create(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_code, name, stat and price are required"})
		return
	}
	if *req.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}

	item := &model.ShopItem{
		ItemCode: *req.ItemCode,
		Name:     req.Name,
		Price:    *req.Price,
	}
	if req.Stat.Health != nil {
		item.Health = *req.Stat.Health
	}
	if req.Stat.Power != nil {
		item.Power = *req.Stat.Power
	}

	if err := h.db.Create(item).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "item code already exists"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "item created",
		"item": gin.H{
			"item_code": item.ItemCode,
			"name":      item.Name,
			"health":    item.Health,
			"power":     item.Power,
			"price":     item.Price,
		},
	})
}

type updateItemRequest struct {
	ItemName string    `json:"item_name"`
	ItemStat *itemStat `json:"item_stat"`
}

// Update handles PATCH /items/update-item/:item_code.
// Price is immutable; missing fields keep their previous values.
func (h *ItemHandler) Update(c *gin.Context) {
	itemCode, err := strconv.Atoi(c.Param("item_code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item code"})
		return
	}

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.ItemName == "" && req.ItemStat == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_name or item_stat is required"})
		return
	}

	var item model.ShopItem
	if err := h.db.Where("item_code = ?", itemCode).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	if req.ItemName != "" {
		item.Name = req.ItemName
	}
	if req.ItemStat != nil {
		if req.ItemStat.Health != nil {
			item.Health = *req.ItemStat.Health
		}
		if req.ItemStat.Power != nil {
			item.Power = *req.ItemStat.Power
		}
	}

	if err := h.db.Model(&item).Updates(map[string]interface{}{
		"name":   item.Name,
		"health": item.Health,
		"power":  item.Power,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "item updated",
		"item": gin.H{
			"item_code": item.ItemCode,
			"name":      item.Name,
			"health":    item.Health,
			"power":     item.Power,
			"price":     item.Price,
		},
	})
}

// List handles GET /items/items. Stats are withheld from the public listing.
func (h *ItemHandler) List(c *gin.Context) {
	var defs []model.ShopItem
	if err := h.db.Find(&defs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	items := make([]gin.H, 0, len(defs))
	for _, it := range defs {
		items = append(items, gin.H{
			"item_code": it.ItemCode,
			"name":      it.Name,
			"price":     it.Price,
		})
	}
	c.JSON(http.StatusOK, items)
}

// Buy handles POST /items/buy-items/:characterId.
func (h *ItemHandler) Buy(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("characterId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var lines []economy.Line
	if err := c.ShouldBindJSON(&lines); err != nil || len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a list of {item_code, count} is required"})
		return
	}

	start := time.Now()
	remaining, err := h.econ.Buy(c.Request.Context(), accountID, charID, lines)
	h.logAudit(c, start, "buy_items", accountID, charID, lines, gin.H{"money": remaining}, err)
	if err != nil {
		writeEconError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "items purchased",
		"money":   remaining,
	})
}

// Sell handles POST /items/sell-items/:characterId.
func (h *ItemHandler) Sell(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("characterId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var lines []economy.Line
	if err := c.ShouldBindJSON(&lines); err != nil || len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a list of {item_code, count} is required"})
		return
	}

	start := time.Now()
	balance, err := h.econ.Sell(c.Request.Context(), accountID, charID, lines)
	h.logAudit(c, start, "sell_items", accountID, charID, lines, gin.H{"money": balance}, err)
	if err != nil {
		writeEconError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "items sold",
		"money":   balance,
	})
}

type equipRequest struct {
	ItemCode *int `json:"item_code" binding:"required"`
}

// Equip handles POST /items/equip-item/:characterId.
func (h *ItemHandler) Equip(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("characterId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req equipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_code is required"})
		return
	}

	start := time.Now()
	health, power, err := h.econ.Equip(c.Request.Context(), accountID, charID, *req.ItemCode)
	h.logAudit(c, start, "equip_item", accountID, charID, req, gin.H{"health": health, "power": power}, err)
	if err != nil {
		writeEconError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "item equipped",
		"health":  health,
		"power":   power,
	})
}

// Unequip handles POST /items/unequip-item/:characterId.
func (h *ItemHandler) Unequip(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("characterId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req equipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_code is required"})
		return
	}

	start := time.Now()
	health, power, err := h.econ.Unequip(c.Request.Context(), accountID, charID, *req.ItemCode)
	h.logAudit(c, start, "unequip_item", accountID, charID, req, gin.H{"health": health, "power": power}, err)
	if err != nil {
		writeEconError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "item unequipped",
		"health":  health,
		"power":   power,
	})
}

func (h *ItemHandler) logAudit(c *gin.Context, start time.Time, action string, accountID, charID int64, req, resp interface{}, err error) {
	if h.audit == nil {
		return
	}
	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		CharID:     &charID,
		AccountID:  &accountID,
		Action:     action,
		Request:    req,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Response = resp
	}
	h.audit.Log(entry)
}

// writeEconError maps economy engine errors onto HTTP responses.
// Unexpected store failures become a generic 500 without internal detail.
func writeEconError(c *gin.Context, err error) {
	var invErr *economy.InvalidItemError
	switch {
	case errors.Is(err, economy.ErrCharacterNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, economy.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, economy.ErrAlreadyEquipped):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &invErr),
		errors.Is(err, economy.ErrInvalidCount),
		errors.Is(err, economy.ErrInsufficientFunds),
		errors.Is(err, economy.ErrItemNotOwned),
		errors.Is(err, economy.ErrInsufficientQuantity),
		errors.Is(err, economy.ErrNotEquipped):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
