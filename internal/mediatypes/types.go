package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind represents the broad category of an uploaded asset.
type Kind string

const (
	// KindImage represents a raster image file.
	KindImage Kind = "image"
	// KindVideo represents a video file.
	KindVideo Kind = "video"
	// KindDocument represents a document file such as a PDF.
	KindDocument Kind = "document"
	// KindArchive represents an archive file. Archives never get derivatives.
	KindArchive Kind = "archive"
	// KindOther represents an unknown or unsupported file type.
	KindOther Kind = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// DocumentExtensions maps file extensions to whether they are supported document formats.
var DocumentExtensions = map[string]bool{
	".pdf": true,
}

// ArchiveExtensions maps file extensions to archive formats that can never
// produce derivatives. The pipeline short-circuits on these instead of
// burning retry budget on them.
var ArchiveExtensions = map[string]bool{
	".zip": true,
	".tar": true,
	".gz":  true,
	".tgz": true,
	".bz2": true,
	".xz":  true,
	".rar": true,
	".7z":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	// Documents
	".pdf": "application/pdf",

	// Archives
	".zip": "application/zip",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",
}

// KindForExtension classifies a lowercase file extension (with leading dot).
func KindForExtension(ext string) Kind {
	switch {
	case ImageExtensions[ext]:
		return KindImage
	case VideoExtensions[ext]:
		return KindVideo
	case DocumentExtensions[ext]:
		return KindDocument
	case ArchiveExtensions[ext]:
		return KindArchive
	default:
		return KindOther
	}
}

// KindForName classifies a filename by its extension.
func KindForName(name string) Kind {
	return KindForExtension(strings.ToLower(filepath.Ext(name)))
}

// KindForMime classifies a MIME type string.
func KindForMime(mime string) Kind {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case mime == "application/pdf":
		return KindDocument
	case mime == "application/zip",
		mime == "application/x-tar",
		mime == "application/gzip",
		mime == "application/vnd.rar",
		mime == "application/x-7z-compressed",
		mime == "application/x-bzip2":
		return KindArchive
	default:
		return KindOther
	}
}

// MimeForName returns the MIME type for a filename, or
// "application/octet-stream" if unknown.
func MimeForName(name string) string {
	if mime, ok := MimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// SupportsDerivatives reports whether assets of this kind can produce
// thumbnails and previews at all. Archives and unknown types cannot, and the
// pipeline marks their derivative stages as skipped instead of retrying.
func SupportsDerivatives(kind Kind) bool {
	return kind == KindImage || kind == KindVideo || kind == KindDocument
}
