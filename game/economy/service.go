package economy

import (
	"context"
	"errors"
	"math"
	"sync"

	"item-simulator/server/config"
	"item-simulator/server/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Line is one requested purchase or sale: an item code and a count.
type Line struct {
	ItemCode int `json:"item_code"`
	Count    int `json:"count"`
}

// Service is the economy engine. Every mutating operation runs as a single
// DB transaction, and all mutations against the same character are
// serialized by a per-character lock so that validation reads stay valid
// at commit time. Different characters proceed in parallel.
type Service struct {
	db     *gorm.DB
	game   config.GameConfig
	locks  sync.Map // charID → *sync.Mutex
	logger *zap.Logger
}

// NewService creates a new economy Service.
func NewService(db *gorm.DB, game config.GameConfig, logger *zap.Logger) *Service {
	return &Service{db: db, game: game, logger: logger}
}

func (svc *Service) lockChar(charID int64) func() {
	v, _ := svc.locks.LoadOrStore(charID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// loadOwnedChar fetches the character and verifies it belongs to accountID.
func (svc *Service) loadOwnedChar(tx *gorm.DB, charID, accountID int64) (*model.Character, error) {
	var char model.Character
	if err := tx.Where("id = ?", charID).First(&char).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	if char.AccountID != accountID {
		return nil, ErrNotOwner
	}
	return &char, nil
}

// mergeLines validates counts and sums duplicate item codes, preserving
// first-seen order.
func mergeLines(lines []Line) ([]Line, error) {
	merged := make([]Line, 0, len(lines))
	index := make(map[int]int, len(lines))
	for _, ln := range lines {
		if ln.Count < 1 {
			return nil, itemErr(ErrInvalidCount, ln.ItemCode)
		}
		if i, ok := index[ln.ItemCode]; ok {
			merged[i].Count += ln.Count
		} else {
			index[ln.ItemCode] = len(merged)
			merged = append(merged, ln)
		}
	}
	return merged, nil
}

// Buy purchases the requested lines from the catalog for charID.
// The whole batch is validated against the catalog and the character's
// money before anything is written; any unknown code aborts the batch.
// Returns the remaining money.
func (svc *Service) Buy(ctx context.Context, accountID, charID int64, lines []Line) (int64, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return 0, err
	}

	unlock := svc.lockChar(charID)
	defer unlock()

	var remaining int64
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		char, err := svc.loadOwnedChar(tx, charID, accountID)
		if err != nil {
			return err
		}

		var total int64
		defs := make([]model.ShopItem, 0, len(merged))
		for _, ln := range merged {
			var def model.ShopItem
			if err := tx.Where("item_code = ?", ln.ItemCode).First(&def).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &InvalidItemError{ItemCode: ln.ItemCode}
				}
				return err
			}
			defs = append(defs, def)
			total += def.Price * int64(ln.Count)
		}
		if total > char.Money {
			return ErrInsufficientFunds
		}

		remaining = char.Money - total
		if err := tx.Model(char).Update("money", remaining).Error; err != nil {
			return err
		}
		for i, ln := range merged {
			def := defs[i]
			var inv model.ItemInstance
			findErr := tx.Where("char_id = ? AND item_code = ? AND location = ?",
				charID, ln.ItemCode, model.LocationInventory).First(&inv).Error
			switch {
			case findErr == nil:
				if err := tx.Model(&inv).Update("count", inv.Count+ln.Count).Error; err != nil {
					return err
				}
			case errors.Is(findErr, gorm.ErrRecordNotFound):
				inst := &model.ItemInstance{
					CharID:   charID,
					ItemCode: def.ItemCode,
					Location: model.LocationInventory,
					Name:     def.Name,
					Health:   def.Health,
					Power:    def.Power,
					Price:    def.Price,
					Count:    ln.Count,
				}
				if err := tx.Create(inst).Error; err != nil {
					return err
				}
			default:
				return findErr
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	svc.logger.Info("buy",
		zap.Int64("char_id", charID),
		zap.Int("lines", len(merged)),
		zap.Int64("remaining", remaining))
	return remaining, nil
}

// Sell sells the requested lines back to the shop at the configured rate
// (unit price = floor(instance price * rate)). Equipped items are not
// eligible. Every line is validated before anything is written.
// Returns the new money balance.
func (svc *Service) Sell(ctx context.Context, accountID, charID int64, lines []Line) (int64, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return 0, err
	}

	unlock := svc.lockChar(charID)
	defer unlock()

	var balance int64
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		char, err := svc.loadOwnedChar(tx, charID, accountID)
		if err != nil {
			return err
		}

		var proceeds int64
		stacks := make([]model.ItemInstance, 0, len(merged))
		for _, ln := range merged {
			var inv model.ItemInstance
			findErr := tx.Where("char_id = ? AND item_code = ? AND location = ?",
				charID, ln.ItemCode, model.LocationInventory).First(&inv).Error
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return itemErr(ErrItemNotOwned, ln.ItemCode)
				}
				return findErr
			}
			if inv.Count < ln.Count {
				return itemErr(ErrInsufficientQuantity, ln.ItemCode)
			}
			stacks = append(stacks, inv)
			unit := int64(math.Floor(float64(inv.Price) * svc.game.SellRate))
			proceeds += unit * int64(ln.Count)
		}

		balance = char.Money + proceeds
		if err := tx.Model(char).Update("money", balance).Error; err != nil {
			return err
		}
		for i, ln := range merged {
			inv := stacks[i]
			if inv.Count == ln.Count {
				if err := tx.Delete(&inv).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&inv).Update("count", inv.Count-ln.Count).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	svc.logger.Info("sell",
		zap.Int64("char_id", charID),
		zap.Int("lines", len(merged)),
		zap.Int64("balance", balance))
	return balance, nil
}

// Equip moves exactly one unit of itemCode from the inventory to the
// equipped set. Only one unit of a given code may be equipped at a time.
// Returns the recomputed health and power.
func (svc *Service) Equip(ctx context.Context, accountID, charID int64, itemCode int) (int, int, error) {
	unlock := svc.lockChar(charID)
	defer unlock()

	var health, power int
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		char, err := svc.loadOwnedChar(tx, charID, accountID)
		if err != nil {
			return err
		}

		var equipped model.ItemInstance
		findErr := tx.Where("char_id = ? AND item_code = ? AND location = ?",
			charID, itemCode, model.LocationEquipped).First(&equipped).Error
		if findErr == nil {
			return itemErr(ErrAlreadyEquipped, itemCode)
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		var inv model.ItemInstance
		if err := tx.Where("char_id = ? AND item_code = ? AND location = ?",
			charID, itemCode, model.LocationInventory).First(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return itemErr(ErrItemNotOwned, itemCode)
			}
			return err
		}

		if inv.Count > 1 {
			if err := tx.Model(&inv).Update("count", inv.Count-1).Error; err != nil {
				return err
			}
			inst := &model.ItemInstance{
				CharID:   charID,
				ItemCode: inv.ItemCode,
				Location: model.LocationEquipped,
				Name:     inv.Name,
				Health:   inv.Health,
				Power:    inv.Power,
				Price:    inv.Price,
				Count:    1,
			}
			if err := tx.Create(inst).Error; err != nil {
				return err
			}
		} else {
			// Last unit: re-home the row instead of duplicating it.
			if err := tx.Model(&inv).Update("location", model.LocationEquipped).Error; err != nil {
				return err
			}
		}

		health, power, err = svc.recomputeStats(tx, char)
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	svc.logger.Info("equip",
		zap.Int64("char_id", charID),
		zap.Int("item_code", itemCode),
		zap.Int("health", health),
		zap.Int("power", power))
	return health, power, nil
}

// Unequip merges the equipped instance of itemCode back into the
// inventory. Returns the recomputed health and power.
func (svc *Service) Unequip(ctx context.Context, accountID, charID int64, itemCode int) (int, int, error) {
	unlock := svc.lockChar(charID)
	defer unlock()

	var health, power int
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		char, err := svc.loadOwnedChar(tx, charID, accountID)
		if err != nil {
			return err
		}

		var equipped model.ItemInstance
		if err := tx.Where("char_id = ? AND item_code = ? AND location = ?",
			charID, itemCode, model.LocationEquipped).First(&equipped).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return itemErr(ErrNotEquipped, itemCode)
			}
			return err
		}

		var inv model.ItemInstance
		findErr := tx.Where("char_id = ? AND item_code = ? AND location = ?",
			charID, itemCode, model.LocationInventory).First(&inv).Error
		switch {
		case findErr == nil:
			if err := tx.Model(&inv).Update("count", inv.Count+1).Error; err != nil {
				return err
			}
			if err := tx.Delete(&equipped).Error; err != nil {
				return err
			}
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			// No existing stack: re-home the equipped row (count is 1).
			if err := tx.Model(&equipped).Update("location", model.LocationInventory).Error; err != nil {
				return err
			}
		default:
			return findErr
		}

		health, power, err = svc.recomputeStats(tx, char)
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	svc.logger.Info("unequip",
		zap.Int64("char_id", charID),
		zap.Int("item_code", itemCode),
		zap.Int("health", health),
		zap.Int("power", power))
	return health, power, nil
}

// EarnMoney grants the fixed configured amount to the character.
// Returns the new balance.
func (svc *Service) EarnMoney(ctx context.Context, accountID, charID int64) (int64, error) {
	unlock := svc.lockChar(charID)
	defer unlock()

	var balance int64
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		char, err := svc.loadOwnedChar(tx, charID, accountID)
		if err != nil {
			return err
		}
		balance = char.Money + svc.game.EarnAmount
		return tx.Model(char).Update("money", balance).Error
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// recomputeStats derives health/power from the full equipped set
// (base stats plus equipped contributions) and persists them. Recomputing
// instead of incrementally adjusting keeps the derived fields consistent
// with the equipped set at every commit boundary.
func (svc *Service) recomputeStats(tx *gorm.DB, char *model.Character) (int, int, error) {
	var equipped []model.ItemInstance
	if err := tx.Where("char_id = ? AND location = ?", char.ID, model.LocationEquipped).
		Find(&equipped).Error; err != nil {
		return 0, 0, err
	}
	health, power := svc.game.BaseHealth, svc.game.BasePower
	for _, it := range equipped {
		health += it.Health
		power += it.Power
	}
	err := tx.Model(char).Updates(map[string]interface{}{
		"health": health,
		"power":  power,
	}).Error
	return health, power, err
}
