// Package pptx packages rendered PDF pages into a .pptx deck where each
// slide is a single full-bleed 16:9 image. The output carries no text
// layer and is a deterministic function of the input images.
package pptx

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"noterang/internal/pdfanalyze"
)

// 16:9 slide, 13.333 x 7.5 inches in EMU.
const (
	slideWidthEMU  = 12192000
	slideHeightEMU = 6858000
)

const renderZoom = 2.0

// Modification time stamped on every zip entry so identical inputs
// produce byte-identical archives.
var zipEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ConvertPDF renders every page of the PDF and writes a PPTX next to it
// (or at outPath when given). Returns the slide count.
func ConvertPDF(pdfPath, outPath string) (int, error) {
	images, err := pdfanalyze.RenderPages(pdfPath, renderZoom)
	if err != nil {
		return 0, fmt.Errorf("render %s: %w", pdfPath, err)
	}
	if len(images) == 0 {
		return 0, fmt.Errorf("render %s: no pages", pdfPath)
	}
	if outPath == "" {
		base := pdfPath[:len(pdfPath)-len(filepath.Ext(pdfPath))]
		outPath = base + ".pptx"
	}
	if err := BuildFromImages(images, outPath); err != nil {
		return 0, err
	}
	return len(images), nil
}

// BuildFromImages writes a PPTX with one slide per PNG image.
func BuildFromImages(images [][]byte, outPath string) (err error) {
	if len(images) == 0 {
		return fmt.Errorf("no images to package")
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", outPath, cerr)
		}
	}()

	zw := zip.NewWriter(f)

	type part struct {
		name string
		data []byte
	}
	parts := []part{
		{"[Content_Types].xml", contentTypesXML(len(images))},
		{"_rels/.rels", []byte(rootRelsXML)},
		{"docProps/app.xml", appXML(len(images))},
		{"docProps/core.xml", []byte(coreXML)},
		{"ppt/presentation.xml", presentationXML(len(images))},
		{"ppt/_rels/presentation.xml.rels", presentationRelsXML(len(images))},
		{"ppt/slideMasters/slideMaster1.xml", []byte(slideMasterXML)},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", []byte(slideMasterRelsXML)},
		{"ppt/slideLayouts/slideLayout1.xml", []byte(slideLayoutXML)},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", []byte(slideLayoutRelsXML)},
		{"ppt/theme/theme1.xml", []byte(themeXML)},
	}
	for i := range images {
		n := i + 1
		parts = append(parts,
			part{fmt.Sprintf("ppt/slides/slide%d.xml", n), slideXML(n)},
			part{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), slideRelsXML(n)},
			part{fmt.Sprintf("ppt/media/image%d.png", n), images[i]},
		)
	}

	for _, part := range parts {
		hdr := &zip.FileHeader{
			Name:     part.name,
			Method:   zip.Deflate,
			Modified: zipEpoch,
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", part.name, err)
		}
		if _, err := w.Write(part.data); err != nil {
			return fmt.Errorf("zip write %s: %w", part.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", outPath, err)
	}
	return nil
}
