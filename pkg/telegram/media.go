package telegram

import (
	"path"
	"strings"

	"github.com/EternisAI/image-vault/pkg/vault"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

func isImageDocument(doc *Document) bool {
	if strings.HasPrefix(strings.ToLower(doc.MimeType), "image/") {
		return true
	}
	return imageExtensions[strings.ToLower(path.Ext(doc.FileName))]
}

// ExtractMedia returns the image carried by msg, or nil. Photos use the largest size.
func ExtractMedia(msg *Message) *vault.Media {
	if msg == nil {
		return nil
	}
	caption := strings.TrimSpace(msg.Caption)

	if len(msg.Photo) > 0 {
		best := msg.Photo[len(msg.Photo)-1]
		return &vault.Media{
			Kind:         vault.MediaPhoto,
			FileID:       best.FileID,
			FileUniqueID: best.FileUniqueID,
			MimeType:     "image/jpeg",
			FileName:     "photo.jpg",
			Caption:      caption,
		}
	}

	if doc := msg.Document; doc != nil && isImageDocument(doc) {
		media := &vault.Media{
			Kind:         vault.MediaDocument,
			FileID:       doc.FileID,
			FileUniqueID: doc.FileUniqueID,
			MimeType:     doc.MimeType,
			FileName:     doc.FileName,
			Caption:      caption,
		}
		if media.MimeType == "" {
			media.MimeType = "application/octet-stream"
		}
		if media.FileName == "" {
			media.FileName = "image"
		}
		return media
	}

	return nil
}
