package services

import (
	"strings"
	"testing"

	"securedocs/models"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../foo\\bar.txt":   "bar.txt",
		"report\".pdf":      "report_.pdf",
		"a\r\nb.txt":        "ab.txt",
		"":                  "download",
		"dir/sub/q1.pdf":    "q1.pdf",
		"name;attack=1.txt": "name_attack=1.txt",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestValidateNodeName(t *testing.T) {
	valid := []string{"Reports", "q1.pdf", "my file_v2-final.txt", "  padded  "}
	for _, name := range valid {
		if _, err := ValidateNodeName(name, 255); err != nil {
			t.Fatalf("expected %q to be valid, got %v", name, err)
		}
	}

	invalid := []string{"", "   ", "a/b", "..", ".", "semi;colon", "tab\tname", strings.Repeat("a", 256)}
	for _, name := range invalid {
		_, err := ValidateNodeName(name, 255)
		if !IsKind(err, KindValidation) {
			t.Fatalf("expected %q to be rejected with validation error, got %v", name, err)
		}
	}

	trimmed, _ := ValidateNodeName("  padded  ", 255)
	if trimmed != "padded" {
		t.Fatalf("expected trimmed name, got %q", trimmed)
	}
}

func TestGetMimeType(t *testing.T) {
	if got := getMimeType("photo.JPG"); got != "image/jpeg" {
		t.Fatalf("unexpected mime %q", got)
	}
	if got := getMimeType("noext"); got != "application/octet-stream" {
		t.Fatalf("unexpected mime %q", got)
	}
}

func TestIsImageNode(t *testing.T) {
	if !isImageNode(models.FileNode{MimeType: "image/png"}) {
		t.Fatalf("expected png to be an image")
	}
	if isImageNode(models.FileNode{MimeType: "image/png", IsFolder: true}) {
		t.Fatalf("folders are never images")
	}
}

func TestAttachmentDisposition(t *testing.T) {
	got := AttachmentDisposition("q1 report.pdf")
	want := `attachment; filename="q1 report.pdf"; filename*=UTF-8''q1%20report.pdf`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := AttachmentDisposition(`..\evil".txt`); strings.Contains(got, `\`) || strings.Count(got, `"`) != 2 {
		t.Fatalf("expected sanitized disposition, got %q", got)
	}
}
