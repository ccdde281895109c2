package render

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// InviteQR encodes a room invite link as a PNG
func InviteQR(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode invite qr: %w", err)
	}
	return png, nil
}

// InviteLink is the join URL for a room
func InviteLink(publicURL, roomID string) string {
	return publicURL + "/join/" + roomID
}
