package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// SummaryQR renders the scan summary's identifying facts as a QR code
// PNG: content digest, format, epoch span and epoch count, one field
// per line, so a scan of the printed report resolves the source file
// without the surrounding text.
func SummaryQR(sum Summary, size int) ([]byte, error) {
	content, err := qrContent(sum)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// qrContent builds the text payload of the QR code. The digest is
// mandatory; it anchors the card to exactly one file.
func qrContent(sum Summary) (string, error) {
	digest := strings.ToLower(strings.TrimSpace(sum.Sha256))
	if digest == "" {
		return "", errors.New("summary has no content digest")
	}
	for _, r := range digest {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("content digest is not hex: %q", sum.Sha256)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "sha256:%s\n", digest)
	fmt.Fprintf(&b, "format:%s %s\n", sum.Format, sum.Version)
	if !sum.First.IsZero() {
		fmt.Fprintf(&b, "span:%s/%s\n",
			sum.First.UTC().Format(time.RFC3339), sum.Last.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "epochs:%d", sum.Epochs)
	return b.String(), nil
}
