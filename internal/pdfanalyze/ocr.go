package pdfanalyze

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"

	"noterang/internal/nrerrors"
)

const (
	visionEndpoint = "https://vision.googleapis.com/v1/images:annotate"
	ocrZoom        = 2.0
	ocrTimeout     = 60 * time.Second
)

// ocrPages rasterizes every page and runs one vision request per page.
func (a *Analyzer) ocrPages(ctx context.Context, path string) ([]Page, error) {
	images, err := RenderPages(path, ocrZoom)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: ocrTimeout}
	pages := make([]Page, 0, len(images))
	for i, img := range images {
		text, err := a.annotateImage(ctx, httpClient, img)
		if err != nil {
			a.log.Warn("OCR page %d failed: %v", i+1, err)
			text = ""
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

// RenderPages renders each PDF page to PNG bytes at the given zoom.
func RenderPages(path string, zoom float64) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for render: %w", err)
	}
	defer doc.Close()

	dpi := 72 * zoom
	images := make([][]byte, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", n+1, err)
		}
		images = append(images, buf.Bytes())
	}
	return images, nil
}

type visionRequest struct {
	Requests []visionAnnotateRequest `json:"requests"`
}

type visionAnnotateRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionResponse struct {
	Responses []struct {
		FullTextAnnotation struct {
			Pages []visionPage `json:"pages"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

type visionPage struct {
	Blocks []visionBlock `json:"blocks"`
}

type visionBlock struct {
	Paragraphs []visionParagraph `json:"paragraphs"`
}

type visionParagraph struct {
	Words []visionWord `json:"words"`
}

type visionWord struct {
	Confidence float64        `json:"confidence"`
	Symbols    []visionSymbol `json:"symbols"`
}

type visionSymbol struct {
	Text     string          `json:"text"`
	Property *visionProperty `json:"property"`
}

type visionProperty struct {
	DetectedBreak *visionBreak `json:"detectedBreak"`
}

type visionBreak struct {
	Type string `json:"type"`
}

func (a *Analyzer) annotateImage(ctx context.Context, client *http.Client, img []byte) (string, error) {
	req := visionRequest{Requests: []visionAnnotateRequest{{
		Image:    visionImage{Content: base64.StdEncoding.EncodeToString(img)},
		Features: []visionFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
	}}}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	endpoint := visionEndpoint + "?key=" + url.QueryEscape(a.visionAPIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", nrerrors.Transient(fmt.Errorf("vision request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", nrerrors.TransientHTTP(fmt.Errorf("vision status %d", resp.StatusCode), resp.StatusCode)
	}

	var out visionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	if len(out.Responses) == 0 {
		return "", nil
	}
	if apiErr := out.Responses[0].Error; apiErr != nil {
		return "", fmt.Errorf("vision error: %s", apiErr.Message)
	}
	return assembleVisionText(out.Responses[0].FullTextAnnotation.Pages, a.confidenceThreshold), nil
}

// assembleVisionText re-joins word symbols, dropping words whose
// confidence is below threshold and honoring detected line breaks.
func assembleVisionText(pages []visionPage, threshold float64) string {
	var sb strings.Builder
	for _, page := range pages {
		for _, block := range page.Blocks {
			for _, para := range block.Paragraphs {
				for _, word := range para.Words {
					if word.Confidence < threshold {
						continue
					}
					for _, sym := range word.Symbols {
						sb.WriteString(sym.Text)
						if sym.Property != nil && sym.Property.DetectedBreak != nil {
							switch sym.Property.DetectedBreak.Type {
							case "SPACE", "SURE_SPACE":
								sb.WriteString(" ")
							case "LINE_BREAK", "EOL_SURE_SPACE":
								sb.WriteString("\n")
							}
						}
					}
				}
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
