package domain

// AccountIDResponse is returned after registering an account.
type AccountIDResponse struct {
	AccountID AccountID `json:"accountId"`
}

// ItemIDResponse is returned after adding an item.
type ItemIDResponse struct {
	ItemID ItemID `json:"itemId"`
}

// MessageResponse acknowledges an operation without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}
