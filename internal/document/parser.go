// Package document splits uploaded documents into ordered content units.
package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/slides-explainer/constants"
)

// Unit is one slide (or sheet): its text fragments in reading order.
type Unit []string

// Text joins the fragments the way they are sent to the model.
func (u Unit) Text() string {
	return strings.Join(u, " ")
}

// Parser turns raw document bytes into ordered units.
type Parser interface {
	Parse(b []byte) ([]Unit, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(b []byte) ([]Unit, error)

func (f ParserFunc) Parse(b []byte) ([]Unit, error) { return f(b) }

// ForName picks the parser for a document by its extension.
func ForName(name string) (Parser, error) {
	switch constants.MapExtToFormat(filepath.Ext(name)) {
	case constants.PPTX:
		return PPTX{}, nil
	case constants.XLSX:
		return XLSX{}, nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", filepath.Ext(name))
	}
}
