package domain

import "encoding/base64"

// JPEGDataURL encodes a raw JPEG payload as a data URL, the form in which
// odometer images are stored on shifts and trips.
func JPEGDataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}
