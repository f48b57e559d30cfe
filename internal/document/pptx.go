package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	nsDrawing      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPresentation = "http://schemas.openxmlformats.org/presentationml/2006/main"
)

var reSlidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// PPTX extracts run text from every text-bearing shape, slide by slide in presentation order.
type PPTX struct{}

func (PPTX) Parse(b []byte) ([]Unit, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	order, err := slideOrder(files)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("pptx has no slides")
	}

	units := make([]Unit, 0, len(order))
	for _, name := range order {
		f, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("pptx missing part %s", name)
		}
		u, err := slideText(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		units = append(units, u)
	}
	return units, nil
}

// slideOrder follows presentation.xml's slide id list; decks without one fall back to slide numbers.
func slideOrder(files map[string]*zip.File) ([]string, error) {
	pres, ok := files["ppt/presentation.xml"]
	rels, relsOK := files["ppt/_rels/presentation.xml.rels"]
	if ok && relsOK {
		var p struct {
			SlideIDs []struct {
				RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
			} `xml:"sldIdLst>sldId"`
		}
		if err := decodePart(pres, &p); err != nil {
			return nil, fmt.Errorf("read presentation.xml: %w", err)
		}
		var r struct {
			Rels []struct {
				ID     string `xml:"Id,attr"`
				Target string `xml:"Target,attr"`
			} `xml:"Relationship"`
		}
		if err := decodePart(rels, &r); err != nil {
			return nil, fmt.Errorf("read presentation rels: %w", err)
		}
		targets := make(map[string]string, len(r.Rels))
		for _, rel := range r.Rels {
			targets[rel.ID] = rel.Target
		}
		if len(p.SlideIDs) > 0 {
			out := make([]string, 0, len(p.SlideIDs))
			for _, s := range p.SlideIDs {
				target, ok := targets[s.RID]
				if !ok {
					return nil, fmt.Errorf("slide relationship %s not found", s.RID)
				}
				out = append(out, resolveTarget(target))
			}
			return out, nil
		}
	}

	type numbered struct {
		name string
		n    int
	}
	var slides []numbered
	for name := range files {
		if m := reSlidePart.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, numbered{name, n})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })
	out := make([]string, len(slides))
	for i, s := range slides {
		out[i] = s.name
	}
	return out, nil
}

func resolveTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join("ppt", target))
}

func decodePart(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	return xml.NewDecoder(rc).Decode(v)
}

// slideText collects <a:t> runs that sit inside a shape's <p:txBody>.
func slideText(f *zip.File) (Unit, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	dec := xml.NewDecoder(rc)
	var (
		unit      = Unit{}
		txBody    int
		inRunText bool
		buf       strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsPresentation && t.Name.Local == "txBody":
				txBody++
			case txBody > 0 && t.Name.Space == nsDrawing && t.Name.Local == "t":
				inRunText = true
				buf.Reset()
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == nsPresentation && t.Name.Local == "txBody":
				txBody--
			case inRunText && t.Name.Space == nsDrawing && t.Name.Local == "t":
				inRunText = false
				unit = append(unit, buf.String())
			}
		case xml.CharData:
			if inRunText {
				buf.Write(t)
			}
		}
	}
	return unit, nil
}
