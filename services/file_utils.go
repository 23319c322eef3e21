package services

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"securedocs/models"
)

var nodeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_ .-]+$`)

// ValidateNodeName trims name and checks charset and length.
func ValidateNodeName(name string, maxLength int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newAppError(KindValidation, "name is required", nil)
	}
	if maxLength > 0 && len(name) > maxLength {
		return "", newAppError(KindValidation, "name is too long", nil)
	}
	if name == "." || name == ".." {
		return "", newAppError(KindValidation, "name is reserved", nil)
	}
	if !nodeNamePattern.MatchString(name) {
		return "", newAppError(KindValidation, "name may only contain letters, digits, spaces, dots, dashes and underscores", nil)
	}
	return name, nil
}

// sanitizeFilename strips directories and quoting characters so the name is
// safe inside a Content-Disposition header.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	replacer := strings.NewReplacer("..", "_", "\"", "_", "\r", "", "\n", "", ";", "_")
	name = replacer.Replace(name)
	if name == "" || name == "/" || name == "." {
		return "download"
	}
	return name
}

// AttachmentDisposition builds a Content-Disposition header value that
// keeps the original name for clients that understand RFC 5987.
func AttachmentDisposition(name string) string {
	safe := sanitizeFilename(name)
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", safe, url.PathEscape(safe))
}

var fallbackMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func getMimeType(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if mt, ok := fallbackMimeTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func isImageNode(node models.FileNode) bool {
	if node.IsFolder {
		return false
	}
	return strings.HasPrefix(strings.ToLower(node.MimeType), "image/")
}
