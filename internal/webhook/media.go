package webhook

import (
	"path"
	"strings"
)

// extractMedia resolves the attachment for a media message. Structured
// per-kind blocks win; legacy flat *_url fields are the fallback, with the
// MIME type inferred from the file extension when absent.
func extractMedia(p *Payload, kind MessageKind) *Media {
	if block := blockForKind(p, kind); block != nil {
		media := &Media{
			Reference: block.Reference(),
			MimeType:  block.MimeType,
			Caption:   block.Caption,
		}
		if kind == KindDocument {
			media.Filename = block.Filename
		}
		return media
	}

	url := legacyMediaURL(p, kind)
	if url == "" {
		return nil
	}
	mime := p.MimeType
	if mime == "" {
		mime = inferMIMEType(url)
	}
	return &Media{
		Reference: url,
		MimeType:  mime,
		Caption:   p.Caption,
		Filename:  p.Filename,
	}
}

func blockForKind(p *Payload, kind MessageKind) *MediaBlock {
	switch kind {
	case KindImage:
		return p.Image
	case KindVideo:
		return p.Video
	case KindAudio:
		return p.Audio
	case KindDocument:
		return p.Document
	case KindSticker:
		return p.Sticker
	default:
		return nil
	}
}

func legacyMediaURL(p *Payload, kind MessageKind) string {
	var url string
	switch kind {
	case KindImage:
		url = p.ImageURL
	case KindVideo:
		url = p.VideoURL
	case KindAudio:
		url = p.AudioURL
	case KindDocument:
		url = p.DocumentURL
	case KindSticker:
		url = p.StickerURL
	}
	if url == "" {
		url = p.MediaURL
	}
	return strings.TrimSpace(url)
}

func inferMIMEType(url string) string {
	switch strings.ToLower(path.Ext(url)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
