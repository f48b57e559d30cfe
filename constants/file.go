package constants

import "strings"

// DocumentFormat identifies which parser handles an uploaded document.
type DocumentFormat string

const (
	PPTX DocumentFormat = "PPTX"
	XLSX DocumentFormat = "XLSX"
)

// AllowedExtensions holds the document extensions accepted at intake.
var AllowedExtensions = map[string]DocumentFormat{
	"pptx": PPTX,
	"xlsx": XLSX,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the document format for ext, or "" when unsupported.
func MapExtToFormat(ext string) DocumentFormat {
	return AllowedExtensions[NormalizeExt(ext)]
}
