package entity

import "time"

// AttachmentRef is the canonical reference returned by the store of record
// after an attachment upload.
type AttachmentRef struct {
	FileURI      string `json:"file_uri"`
	ThumbnailURI string `json:"thumbnail_uri,omitempty"`
}

// AttachmentFile represents attachment content read from a capture or blob store
type AttachmentFile struct {
	Content  []byte
	FileName string
	MimeType string
	Size     int64
}

// IsPDF returns true if the attachment is a PDF document
func (a *AttachmentFile) IsPDF() bool {
	return a.MimeType == "application/pdf"
}

// StoredAttachment records a document kept by the store of record
type StoredAttachment struct {
	ID           int64     `json:"id"`
	FileURI      string    `json:"file_uri"`
	ThumbnailURI string    `json:"thumbnail_uri,omitempty"`
	FileName     string    `json:"file_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"file_size"`
	Checksum     string    `json:"checksum"`
	CreatedAt    time.Time `json:"created_at"`
}
