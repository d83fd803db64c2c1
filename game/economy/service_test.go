package economy_test

import (
	"context"
	"errors"
	"testing"

	"item-simulator/server/game/economy"
	"item-simulator/server/model"
	"item-simulator/server/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newEconomy(t *testing.T) (*economy.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := economy.NewService(db, testutil.GameDefaults(), zap.NewNop())
	return svc, db
}

func seedCharacter(t *testing.T, db *gorm.DB, accountID int64, name string) *model.Character {
	t.Helper()
	game := testutil.GameDefaults()
	char := &model.Character{
		AccountID: accountID,
		Name:      name,
		Health:    game.BaseHealth,
		Power:     game.BasePower,
		Money:     game.StartMoney,
	}
	require.NoError(t, db.Create(char).Error)
	return char
}

func seedItem(t *testing.T, db *gorm.DB, code int, name string, health, power int, price int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.ShopItem{
		ItemCode: code,
		Name:     name,
		Health:   health,
		Power:    power,
		Price:    price,
	}).Error)
}

func reloadChar(t *testing.T, db *gorm.DB, id int64) model.Character {
	t.Helper()
	var char model.Character
	require.NoError(t, db.First(&char, id).Error)
	return char
}

func inventoryStack(t *testing.T, db *gorm.DB, charID int64, code int, loc model.Location) (model.ItemInstance, bool) {
	t.Helper()
	var inst model.ItemInstance
	err := db.Where("char_id = ? AND item_code = ? AND location = ?", charID, code, loc).
		First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ItemInstance{}, false
	}
	require.NoError(t, err)
	return inst, true
}

func TestBuyDeductsMoneyAndStacks(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "buyer")
	seedItem(t, db, 101, "sword", 0, 50, 500)

	remaining, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{
		{ItemCode: 101, Count: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9000), remaining)
	assert.Equal(t, int64(9000), reloadChar(t, db, char.ID).Money)

	stack, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	require.True(t, ok)
	assert.Equal(t, 2, stack.Count)
	assert.Equal(t, int64(500), stack.Price)
	assert.Equal(t, 50, stack.Power)
}

func TestBuyMergesDuplicateLines(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "merger")
	seedItem(t, db, 101, "sword", 0, 50, 100)

	remaining, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{
		{ItemCode: 101, Count: 1},
		{ItemCode: 101, Count: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9700), remaining)

	stack, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	require.True(t, ok)
	assert.Equal(t, 3, stack.Count)
}

func TestBuyUnknownCodeAbortsBatch(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "aborter")
	seedItem(t, db, 101, "sword", 0, 50, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{
		{ItemCode: 101, Count: 1},
		{ItemCode: 999, Count: 1},
	})
	var invErr *economy.InvalidItemError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 999, invErr.ItemCode)

	// Nothing was written.
	assert.Equal(t, int64(10000), reloadChar(t, db, char.ID).Money)
	_, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	assert.False(t, ok)
}

func TestBuyInsufficientFunds(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "pauper")
	seedItem(t, db, 101, "relic", 0, 0, 6000)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{
		{ItemCode: 101, Count: 2},
	})
	require.ErrorIs(t, err, economy.ErrInsufficientFunds)
	assert.Equal(t, int64(10000), reloadChar(t, db, char.ID).Money)
}

func TestBuyRejectsNonPositiveCount(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "zero")
	seedItem(t, db, 101, "sword", 0, 0, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{
		{ItemCode: 101, Count: 0},
	})
	require.ErrorIs(t, err, economy.ErrInvalidCount)
}

func TestSellPaysFloorOfRate(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "seller")
	seedItem(t, db, 101, "sword", 0, 0, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 3}})
	require.NoError(t, err)

	// 10000 - 300 + floor(100*0.6)*3 = 9880
	balance, err := svc.Sell(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(9880), balance)

	// Stack sold out entirely: row is gone, never kept at count 0.
	_, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	assert.False(t, ok)
}

func TestSellTruncatesOddPrices(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "oddseller")
	seedItem(t, db, 101, "charm", 0, 0, 33)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.NoError(t, err)

	// floor(33*0.6) = 19, so 10000 - 33 + 19 = 9986
	balance, err := svc.Sell(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(9986), balance)
}

func TestSellPartialStackDecrements(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "partial")
	seedItem(t, db, 101, "potion", 0, 0, 50)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 5}})
	require.NoError(t, err)

	_, err = svc.Sell(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 2}})
	require.NoError(t, err)

	stack, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	require.True(t, ok)
	assert.Equal(t, 3, stack.Count)
}

func TestSellFailsForUnownedAndLeavesStateUntouched(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "mixed")
	seedItem(t, db, 101, "sword", 0, 0, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 2}})
	require.NoError(t, err)
	moneyBefore := reloadChar(t, db, char.ID).Money

	_, err = svc.Sell(context.Background(), 1, char.ID, []economy.Line{
		{ItemCode: 101, Count: 1},
		{ItemCode: 999, Count: 1},
	})
	require.ErrorIs(t, err, economy.ErrItemNotOwned)

	assert.Equal(t, moneyBefore, reloadChar(t, db, char.ID).Money)
	stack, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	require.True(t, ok)
	assert.Equal(t, 2, stack.Count)
}

func TestSellMoreThanOwned(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "greedy")
	seedItem(t, db, 101, "sword", 0, 0, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.NoError(t, err)

	_, err = svc.Sell(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 2}})
	require.ErrorIs(t, err, economy.ErrInsufficientQuantity)
}

func TestEquippedItemsCannotBeSold(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "armored")
	seedItem(t, db, 101, "helmet", 20, 0, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.NoError(t, err)
	_, _, err = svc.Equip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)

	_, err = svc.Sell(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.ErrorIs(t, err, economy.ErrItemNotOwned)
}

func TestEquipAppliesStats(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "knight")
	seedItem(t, db, 101, "helmet", 50, 10, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 2}})
	require.NoError(t, err)

	health, power, err := svc.Equip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)
	assert.Equal(t, 550, health)
	assert.Equal(t, 110, power)

	// One unit moved: inventory stack decremented, equipped row holds one.
	stack, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	require.True(t, ok)
	assert.Equal(t, 1, stack.Count)
	eq, ok := inventoryStack(t, db, char.ID, 101, model.LocationEquipped)
	require.True(t, ok)
	assert.Equal(t, 1, eq.Count)
}

func TestEquipLastUnitRehomesRow(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "minimal")
	seedItem(t, db, 101, "ring", 0, 5, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.NoError(t, err)
	_, _, err = svc.Equip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)

	_, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	assert.False(t, ok)
	eq, ok := inventoryStack(t, db, char.ID, 101, model.LocationEquipped)
	require.True(t, ok)
	assert.Equal(t, 1, eq.Count)
}

func TestEquipDuplicateRejected(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "dup")
	seedItem(t, db, 101, "ring", 0, 5, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 2}})
	require.NoError(t, err)
	_, _, err = svc.Equip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)

	_, _, err = svc.Equip(context.Background(), 1, char.ID, 101)
	require.ErrorIs(t, err, economy.ErrAlreadyEquipped)
}

func TestEquipWithoutOwning(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "empty")
	seedItem(t, db, 101, "ring", 0, 5, 100)

	_, _, err := svc.Equip(context.Background(), 1, char.ID, 101)
	require.ErrorIs(t, err, economy.ErrItemNotOwned)
}

func TestUnequipRestoresBaseStats(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "inverse")
	seedItem(t, db, 101, "helmet", 50, 10, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.NoError(t, err)
	health, power, err := svc.Equip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)
	assert.Equal(t, 550, health)
	assert.Equal(t, 110, power)

	health, power, err = svc.Unequip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)
	assert.Equal(t, 500, health)
	assert.Equal(t, 100, power)

	// The unit is back in the inventory and the equipped row is gone.
	stack, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	require.True(t, ok)
	assert.Equal(t, 1, stack.Count)
	_, ok = inventoryStack(t, db, char.ID, 101, model.LocationEquipped)
	assert.False(t, ok)
}

func TestUnequipMergesIntoExistingStack(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "merger2")
	seedItem(t, db, 101, "helmet", 50, 10, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{{ItemCode: 101, Count: 3}})
	require.NoError(t, err)
	_, _, err = svc.Equip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)
	_, _, err = svc.Unequip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)

	stack, ok := inventoryStack(t, db, char.ID, 101, model.LocationInventory)
	require.True(t, ok)
	assert.Equal(t, 3, stack.Count)
}

func TestUnequipNotEquipped(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "bare")
	seedItem(t, db, 101, "helmet", 50, 10, 100)

	_, _, err := svc.Unequip(context.Background(), 1, char.ID, 101)
	require.ErrorIs(t, err, economy.ErrNotEquipped)
}

func TestStatsDerivedFromFullEquippedSet(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "layered")
	seedItem(t, db, 101, "helmet", 50, 0, 100)
	seedItem(t, db, 102, "sword", 0, 30, 100)

	_, err := svc.Buy(context.Background(), 1, char.ID, []economy.Line{
		{ItemCode: 101, Count: 1},
		{ItemCode: 102, Count: 1},
	})
	require.NoError(t, err)

	_, _, err = svc.Equip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)
	health, power, err := svc.Equip(context.Background(), 1, char.ID, 102)
	require.NoError(t, err)
	assert.Equal(t, 550, health)
	assert.Equal(t, 130, power)

	health, power, err = svc.Unequip(context.Background(), 1, char.ID, 101)
	require.NoError(t, err)
	assert.Equal(t, 500, health)
	assert.Equal(t, 130, power)
}

func TestEarnMoneyAddsFixedAmount(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "worker")

	balance, err := svc.EarnMoney(context.Background(), 1, char.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10100), balance)

	balance, err = svc.EarnMoney(context.Background(), 1, char.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10200), balance)
	assert.Equal(t, int64(10200), reloadChar(t, db, char.ID).Money)
}

func TestMutationsRequireOwnership(t *testing.T) {
	svc, db := newEconomy(t)
	char := seedCharacter(t, db, 1, "owned")
	seedItem(t, db, 101, "sword", 0, 0, 100)

	_, err := svc.Buy(context.Background(), 2, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.ErrorIs(t, err, economy.ErrNotOwner)
	_, err = svc.Sell(context.Background(), 2, char.ID, []economy.Line{{ItemCode: 101, Count: 1}})
	require.ErrorIs(t, err, economy.ErrNotOwner)
	_, _, err = svc.Equip(context.Background(), 2, char.ID, 101)
	require.ErrorIs(t, err, economy.ErrNotOwner)
	_, _, err = svc.Unequip(context.Background(), 2, char.ID, 101)
	require.ErrorIs(t, err, economy.ErrNotOwner)
	_, err = svc.EarnMoney(context.Background(), 2, char.ID)
	require.ErrorIs(t, err, economy.ErrNotOwner)
}

func TestUnknownCharacter(t *testing.T) {
	svc, _ := newEconomy(t)

	_, err := svc.EarnMoney(context.Background(), 1, 42)
	require.ErrorIs(t, err, economy.ErrCharacterNotFound)
}
