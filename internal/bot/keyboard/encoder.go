// Package keyboard renders conversation keyboards as Telegram markup.
package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CallbackDataSeparator = ":"
	// CallbackDataLimitBytes is Telegram's cap on callback_data.
	CallbackDataLimitBytes = 64
)

var errEmptyCallback = errors.New("callback data is empty")

// EncodeCallback joins an action and its optional payload into callback data.
func EncodeCallback(action, data string) (string, error) {
	payload := action
	if data != "" {
		payload = action + CallbackDataSeparator + data
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback data at the first separator.
func DecodeCallback(callbackData string) (action, data string, err error) {
	if callbackData == "" {
		return "", "", errEmptyCallback
	}

	action, data, _ = strings.Cut(callbackData, CallbackDataSeparator)
	return action, data, nil
}
