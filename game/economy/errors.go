package economy

import (
	"errors"
	"fmt"
)

var (
	// ErrCharacterNotFound means the target character does not exist.
	ErrCharacterNotFound = errors.New("character not found")
	// ErrNotOwner means the character belongs to a different account.
	ErrNotOwner = errors.New("character belongs to another account")
	// ErrInsufficientFunds means the purchase total exceeds the character's money.
	ErrInsufficientFunds = errors.New("not enough money")
	// ErrInvalidCount means a requested count is below 1.
	ErrInvalidCount = errors.New("count must be at least 1")
	// ErrItemNotOwned means no matching unequipped inventory stack exists.
	ErrItemNotOwned = errors.New("item not in inventory")
	// ErrInsufficientQuantity means the requested count exceeds the owned count.
	ErrInsufficientQuantity = errors.New("not enough items")
	// ErrAlreadyEquipped means an instance with this code is already equipped.
	ErrAlreadyEquipped = errors.New("item already equipped")
	// ErrNotEquipped means no equipped instance with this code exists.
	ErrNotEquipped = errors.New("item not equipped")
)

// InvalidItemError reports a purchase line whose code is absent from the
// catalog. The whole batch is rejected when any line fails.
type InvalidItemError struct {
	ItemCode int
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("unknown item code %d", e.ItemCode)
}

// itemErr wraps a sentinel with the offending item code so error messages
// can name the line that failed.
func itemErr(sentinel error, code int) error {
	return fmt.Errorf("%w: item code %d", sentinel, code)
}
