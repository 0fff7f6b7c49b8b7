package domain

import (
	"errors"
	"strconv"
)

// ErrItemCurrentlyLoaned is returned when withdrawing an item that has an open loan.
var ErrItemCurrentlyLoaned = errors.New("item currently loaned")

// ItemID identifies a catalog item.
type ItemID int64

func (id ItemID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseItemID parses a decimal item id.
func ParseItemID(s string) (ItemID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidInput
	}

	return ItemID(id), nil
}

// Item is a catalog entry. Borrowed is derived from the ledger on every read
// and is never written by the catalog.
type Item struct {
	ID        ItemID `json:"id"`
	Title     string `json:"title"`
	Creator   string `json:"creator"`
	Withdrawn bool   `json:"withdrawn"`
	Borrowed  bool   `json:"borrowed"`
	CreatedAt int64  `json:"createdAt"`
}
