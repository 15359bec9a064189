package browser

import "strings"

// Scope selects the root a dump walks from.
type Scope string

const (
	// ScopeDocument walks the whole page.
	ScopeDocument Scope = "document"
	// ScopeOverlay walks only the top-of-stack overlay pane. Searches
	// scoped here cannot match same-text elements behind the modal.
	ScopeOverlay Scope = "overlay"
)

// Rect is an absolute viewport rectangle in CSS pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// CenterX and CenterY locate the click point of a rect.
func (r Rect) CenterX() float64 { return r.X + r.W/2 }
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// Empty reports whether the rect has no area (hidden or detached element).
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Element is one interactive candidate from a dump.
type Element struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	AriaLabel   string `json:"aria"`
	Placeholder string `json:"placeholder"`
	Disabled    bool   `json:"disabled"`
	Rect        Rect   `json:"rect"`
}

// Visible reports whether the element occupies viewport space.
func (e Element) Visible() bool { return !e.Rect.Empty() }

// Matches reports whether the element's text or aria-label contains needle.
func (e Element) Matches(needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(e.Text, needle) || strings.Contains(e.AriaLabel, needle)
}

// MatchesAny reports whether the element matches one of the needles.
func (e Element) MatchesAny(needles []string) bool {
	for _, n := range needles {
		if e.Matches(n) {
			return true
		}
	}
	return false
}

// dumpScript returns all interactive candidates under the scope root with
// their absolute viewport rects. Rects are computed inside the page so the
// result survives framework re-renders between query and click.
const dumpScript = `(() => {
	const OVERLAY = %t;
	let root = document;
	if (OVERLAY) {
		const panes = document.querySelectorAll('.cdk-overlay-pane');
		if (!panes.length) return [];
		root = panes[panes.length - 1];
	}
	const sel = 'button, input, textarea, a, [contenteditable="true"], ' +
		'[role="tab"], [role="button"], [role="menuitem"]';
	const seen = new Set();
	const out = [];
	let i = 0;
	for (const el of root.querySelectorAll(sel)) {
		if (seen.has(el)) continue;
		seen.add(el);
		const r = el.getBoundingClientRect();
		out.push({
			index: i++,
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			text: (el.innerText || el.textContent || '').trim().slice(0, 60),
			aria: el.getAttribute('aria-label') || '',
			placeholder: el.getAttribute('placeholder') || '',
			disabled: !!el.disabled,
			rect: {x: r.x, y: r.y, w: r.width, h: r.height},
		});
	}
	return out;
})()`

// primaryActionTexts are the submit-button labels the overlay dialogs use.
var primaryActionTexts = []string{"Insert", "삽입", "Submit", "제출"}

// minClickableWidth/Height reject decorative fragments that happen to carry
// matching text.
const (
	minClickableWidth  = 20.0
	minClickableHeight = 10.0
)

// FindByText returns the first visible element containing needle whose rect
// clears the minimum clickable size.
func FindByText(elements []Element, needle string) (Element, bool) {
	for _, e := range elements {
		if !e.Visible() || e.Rect.W < minClickableWidth || e.Rect.H < minClickableHeight {
			continue
		}
		if e.Matches(needle) {
			return e, true
		}
	}
	return Element{}, false
}

// PrimaryAction returns the enabled submit-like button among elements.
func PrimaryAction(elements []Element) (Element, bool) {
	for _, e := range elements {
		if e.Tag != "button" || e.Disabled || !e.Visible() {
			continue
		}
		if e.MatchesAny(primaryActionTexts) {
			return e, true
		}
	}
	return Element{}, false
}

// InputRects filters the dump down to enterable fields: visible input and
// textarea elements that are not hidden, checkbox or radio controls.
func InputRects(elements []Element) []Element {
	var out []Element
	for _, e := range elements {
		if e.Tag != "input" && e.Tag != "textarea" {
			continue
		}
		switch e.Type {
		case "hidden", "checkbox", "radio":
			continue
		}
		if !e.Visible() {
			continue
		}
		out = append(out, e)
	}
	return out
}

// LargestInput picks the input with the biggest area, the heuristic for the
// design-prompt textarea in the studio overlay.
func LargestInput(elements []Element) (Element, bool) {
	inputs := InputRects(elements)
	var best Element
	bestArea := 0.0
	for _, e := range inputs {
		if area := e.Rect.W * e.Rect.H; area > bestArea {
			best, bestArea = e, area
		}
	}
	return best, bestArea > 0
}

// ScalePoint maps a coordinate guess calibrated on a 1920x1080 viewport to
// the actual viewport size.
func ScalePoint(x, y float64, viewportW, viewportH int) (float64, float64) {
	if viewportW <= 0 || viewportH <= 0 {
		return x, y
	}
	return x * float64(viewportW) / 1920.0, y * float64(viewportH) / 1080.0
}
