package rest

import (
	"net/http"
	"strconv"
	"time"

	"item-simulator/server/audit"
	"item-simulator/server/game/economy"
	mw "item-simulator/server/middleware"

	"github.com/gin-gonic/gin"
)

// MoneyHandler handles the fixed-increment currency grant.
type MoneyHandler struct {
	econ  *economy.Service
	audit *audit.Service
}

// NewMoneyHandler creates a new MoneyHandler.
func NewMoneyHandler(econ *economy.Service, auditSvc *audit.Service) *MoneyHandler {
	return &MoneyHandler{econ: econ, audit: auditSvc}
}

// Earn handles POST /money/:characterId.
func (h *MoneyHandler) Earn(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("characterId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	start := time.Now()
	balance, err := h.econ.EarnMoney(c.Request.Context(), accountID, charID)
	if h.audit != nil {
		entry := audit.Entry{
			TraceID:    mw.GetTraceID(c),
			CharID:     &charID,
			AccountID:  &accountID,
			Action:     "earn_money",
			IP:         c.ClientIP(),
			DurationMs: int(time.Since(start).Milliseconds()),
		}
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Response = gin.H{"money": balance}
		}
		h.audit.Log(entry)
	}
	if err != nil {
		writeEconError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "money added",
		"money":   balance,
	})
}
