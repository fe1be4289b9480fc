package assets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrEmptyBlob файл пустой.
	ErrEmptyBlob = errors.New("empty file")
	// ErrInvalidBlob строку не удалось декодировать.
	ErrInvalidBlob = errors.New("invalid base64 payload")
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DecodeDataURI принимает data URI ("data:application/pdf;base64,...")
// или голый base64 и возвращает байты файла.
func DecodeDataURI(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, ErrInvalidBlob
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, ErrEmptyBlob
	}

	blob, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if blob, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
		}
	}
	if len(blob) == 0 {
		return nil, ErrEmptyBlob
	}
	return blob, nil
}

// PublicID строит ключ объекта вида <folder>/<invoiceNo>-<unixMillis>.pdf.
// Символы номера, недопустимые в ключе, заменяются на "_".
func PublicID(folder, invoiceNo string, now time.Time) string {
	name := unsafeKeyChars.ReplaceAllString(invoiceNo, "_")
	if name == "" {
		name = "bill"
	}
	key := fmt.Sprintf("%s-%d.pdf", name, now.UnixMilli())
	if folder == "" {
		return key
	}
	return folder + "/" + key
}

// NewPublicID строит ключ в папке хранилища.
func (s *Store) NewPublicID(invoiceNo string, now time.Time) string {
	return PublicID(s.folder, invoiceNo, now)
}
