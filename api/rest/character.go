package rest

import (
	"net/http"
	"strconv"

	"item-simulator/server/config"
	mw "item-simulator/server/middleware"
	"item-simulator/server/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CharacterHandler handles character REST endpoints.
type CharacterHandler struct {
	db   *gorm.DB
	game config.GameConfig
}

// NewCharacterHandler creates a new CharacterHandler.
func NewCharacterHandler(db *gorm.DB, game config.GameConfig) *CharacterHandler {
	return &CharacterHandler{db: db, game: game}
}

type createCharacterRequest struct {
	Name string `json:"name" binding:"required,min=1,max=32"`
}

// Create handles POST /characters/create-character.
// The character starts with base stats and the configured starting money;
// its inventory and equipped set are the (initially empty) location
// contexts of the item instance table.
func (h *CharacterHandler) Create(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	var req createCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "character name is required"})
		return
	}

	char := &model.Character{
		AccountID: accountID,
		Name:      req.Name,
		Health:    h.game.BaseHealth,
		Power:     h.game.BasePower,
		Money:     h.game.StartMoney,
	}
	if err := h.db.Create(char).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "character name already taken"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "character created",
		"character_id": char.ID,
	})
}

// Delete handles DELETE /characters/:id. Owner only; removes the
// character together with all of its item instances in one transaction.
func (h *CharacterHandler) Delete(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var char model.Character
	if err := h.db.First(&char, charID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}
	if char.AccountID != accountID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only delete your own characters"})
		return
	}

	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("char_id = ?", charID).Delete(&model.ItemInstance{}).Error; err != nil {
			return err
		}
		return tx.Delete(&char).Error
	})
	if txErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// Get handles GET /characters/:id. Money is a private field: it is
// included only when the viewer owns the character. Third-party and
// unauthenticated viewers get the reduced projection, never an error.
func (h *CharacterHandler) Get(c *gin.Context) {
	viewerID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var char model.Character
	if err := h.db.First(&char, charID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}

	resp := gin.H{
		"name":   char.Name,
		"health": char.Health,
		"power":  char.Power,
	}
	if viewerID != 0 && viewerID == char.AccountID {
		resp["money"] = char.Money
	}
	c.JSON(http.StatusOK, resp)
}

// ListInventory handles GET /characters/inventory/:characterId.
func (h *CharacterHandler) ListInventory(c *gin.Context) {
	charID, err := strconv.ParseInt(c.Param("characterId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.db.First(&model.Character{}, charID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}

	var stacks []model.ItemInstance
	if err := h.db.Where("char_id = ? AND location = ?", charID, model.LocationInventory).
		Find(&stacks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	items := make([]gin.H, 0, len(stacks))
	for _, it := range stacks {
		items = append(items, gin.H{
			"item_code": it.ItemCode,
			"name":      it.Name,
			"count":     it.Count,
		})
	}
	c.JSON(http.StatusOK, items)
}

// ListEquipped handles GET /characters/equipped/:characterId (public).
func (h *CharacterHandler) ListEquipped(c *gin.Context) {
	charID, err := strconv.ParseInt(c.Param("characterId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.db.First(&model.Character{}, charID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}

	var equipped []model.ItemInstance
	if err := h.db.Where("char_id = ? AND location = ?", charID, model.LocationEquipped).
		Find(&equipped).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	items := make([]gin.H, 0, len(equipped))
	for _, it := range equipped {
		items = append(items, gin.H{
			"item_code": it.ItemCode,
			"name":      it.Name,
		})
	}
	c.JSON(http.StatusOK, items)
}
