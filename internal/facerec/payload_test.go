package facerec

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestDecodeImagePayload(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0x03}
	encoded := base64.StdEncoding.EncodeToString(raw)

	t.Run("PlainBase64", func(t *testing.T) {
		data, err := DecodeImagePayload(encoded)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if !bytes.Equal(data, raw) {
			t.Error("Decoded data does not match original")
		}
	})

	t.Run("DataURLPrefix", func(t *testing.T) {
		data, err := DecodeImagePayload("data:image/jpeg;base64," + encoded)
		if err != nil {
			t.Fatalf("Failed to decode data URL: %v", err)
		}
		if !bytes.Equal(data, raw) {
			t.Error("Decoded data does not match original")
		}
	})

	t.Run("SurroundingWhitespace", func(t *testing.T) {
		data, err := DecodeImagePayload("  " + encoded + "\n")
		if err != nil {
			t.Fatalf("Failed to decode padded payload: %v", err)
		}
		if !bytes.Equal(data, raw) {
			t.Error("Decoded data does not match original")
		}
	})

	t.Run("URLSafeBase64", func(t *testing.T) {
		urlSafe := base64.URLEncoding.EncodeToString([]byte{0xFB, 0xEF, 0xFF})
		data, err := DecodeImagePayload(urlSafe)
		if err != nil {
			t.Fatalf("Failed to decode URL-safe payload: %v", err)
		}
		if len(data) != 3 {
			t.Errorf("Expected 3 bytes, got %d", len(data))
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if _, err := DecodeImagePayload(""); err == nil {
			t.Error("Expected error for empty payload")
		}
	})

	t.Run("MalformedDataURL", func(t *testing.T) {
		if _, err := DecodeImagePayload("data:image/jpeg;base64"); err == nil {
			t.Error("Expected error for data URL without comma")
		}
	})

	t.Run("InvalidBase64", func(t *testing.T) {
		if _, err := DecodeImagePayload("not!!valid@@base64"); err == nil {
			t.Error("Expected error for invalid base64")
		}
	})
}
