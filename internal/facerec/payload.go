package facerec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DecodeImagePayload decodes a base64 image payload as sent by browser
// clients. Data URL prefixes ("data:image/jpeg;base64,...") are stripped
// before decoding.
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("empty image payload")
	}

	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, errors.New("malformed data URL: missing comma separator")
		}
		payload = payload[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients emit URL-safe base64.
		data, err = base64.URLEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 image: %w", err)
		}
	}

	if len(data) == 0 {
		return nil, errors.New("decoded image payload is empty")
	}

	return data, nil
}
