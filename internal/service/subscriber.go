package service

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// Subscriber is the local account that owns subscriptions.
type Subscriber struct {
	ID        uint
	FirstName string
	LastName  string
	Email     string
}

func encodePassThru(userID uint) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(userID), 10)))
}

func decodePassThru(content string) (uint, error) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return 0, fmt.Errorf("invalid pass-through content: %w", err)
	}

	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pass-through content: %w", err)
	}

	return uint(id), nil
}
