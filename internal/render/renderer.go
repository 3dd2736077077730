// Package render fills card templates with card records and keeps the
// rendered container.
package render

import (
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/arcanaland/cardwatch/internal/card"
	"github.com/arcanaland/cardwatch/internal/dom"
	"github.com/arcanaland/cardwatch/internal/fragment"
)

// Template slot classes
const (
	ClassImage     = "card-img-top"
	ClassChain     = "card-chain"
	ClassName      = "card-name"
	ClassTheme     = "card-theme"
	ClassType      = "card-type"
	ClassCoins     = "card-coins"
	ClassCoinStats = "stat-coins"
	ClassAmount    = "card-ammount"
	ClassID        = "card-id"
	ClassPackID    = "pack-id"
	ClassDate      = "card-date"
	ClassCard      = "card"
	ClassFlipped   = "flipped"
)

// CoinLabel is the text of the label cell spanning the coin table
const CoinLabel = "CARD_COINS"

// FlipHandler is the click handler attached to each card root
const FlipHandler = "this.classList.toggle('flipped')"

// Templates looks up the blueprint for a status
type Templates interface {
	Lookup(status card.Status) (*fragment.Template, bool)
}

// field maps one slot class to the card value written into it
type field struct {
	class string
	value func(c *card.Card) string
}

var leadingFields = []field{
	{ClassChain, func(c *card.Card) string { return c.Chain.String() }},
	{ClassName, func(c *card.Card) string { return c.Name.String() }},
	{ClassTheme, func(c *card.Card) string { return c.Theme.String() }},
	{ClassType, func(c *card.Card) string { return c.Type.String() }},
}

var trailingFields = []field{
	{ClassAmount, func(c *card.Card) string { return c.USDAmount.String() }},
	{ClassID, func(c *card.Card) string { return c.ID.String() }},
	{ClassPackID, func(c *card.Card) string { return c.PackID.String() }},
	{ClassDate, func(c *card.Card) string { return c.Date.String() }},
}

// SlotClasses lists every class the renderer writes into
func SlotClasses() []string {
	classes := []string{ClassImage}
	for _, f := range leadingFields {
		classes = append(classes, f.class)
	}
	classes = append(classes, ClassCoins)
	for _, f := range trailingFields {
		classes = append(classes, f.class)
	}
	return classes
}

// Renderer owns the card container. Every Render call replaces its content.
type Renderer struct {
	templates Templates
	imageBase *url.URL

	mu        sync.RWMutex
	container *html.Node
	count     int
}

// Option configures a Renderer
type Option func(*Renderer)

// WithImageBase resolves relative image URLs against base, for pages that
// are not served from the card endpoint's origin.
func WithImageBase(base *url.URL) Option {
	return func(r *Renderer) {
		r.imageBase = base
	}
}

// New creates a renderer with an empty container element with the given id
func New(templates Templates, containerID string, opts ...Option) *Renderer {
	r := &Renderer{
		templates: templates,
		container: dom.Element(atom.Div, "id", containerID),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render discards the current container content and renders cards in order
func (r *Renderer) Render(cards []card.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dom.RemoveChildren(r.container)
	r.count = 0

	for i := range cards {
		clone := r.renderCard(&cards[i])
		if clone == nil {
			continue
		}
		// Move the fragment children into the container
		for clone.FirstChild != nil {
			child := clone.FirstChild
			clone.RemoveChild(child)
			r.container.AppendChild(child)
		}
		r.count++
	}
}

// renderCard fills a clone of the matching template, or returns nil when
// neither the status nor the fallback template is loaded.
func (r *Renderer) renderCard(c *card.Card) *html.Node {
	tmpl, ok := r.templates.Lookup(c.Status)
	if !ok {
		tmpl, ok = r.templates.Lookup(card.Statuses[0])
		if !ok {
			return nil
		}
	}

	clone := tmpl.Clone()

	if img := dom.Query(clone, ClassImage); img != nil {
		if src, ok := SafeImageURL(c.ImageURL.String()); ok {
			dom.SetAttr(img, "src", r.resolveImage(src))
		}
	}

	fill(clone, c, leadingFields)

	if c.Status == card.Statuses[0] {
		if host := dom.Query(clone, ClassCoinStats); host != nil {
			dom.RemoveChildren(host)
			host.AppendChild(coinTable(c.Coins.Tokens()))
		}
	} else {
		for _, el := range dom.QueryAll(clone, ClassCoins) {
			dom.SetText(el, c.Coins.String())
		}
	}

	fill(clone, c, trailingFields)

	if root := dom.Query(clone, ClassCard); root != nil {
		dom.SetAttr(root, "onclick", FlipHandler)
		dom.SetAttr(root, "data-flip", "")
	}

	return clone
}

func (r *Renderer) resolveImage(src string) string {
	if r.imageBase == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil || ref.IsAbs() {
		return src
	}
	return r.imageBase.ResolveReference(ref).String()
}

func fill(root *html.Node, c *card.Card, fields []field) {
	for _, f := range fields {
		value := f.value(c)
		for _, el := range dom.QueryAll(root, f.class) {
			dom.SetText(el, value)
		}
	}
}

// coinTable lays coins out vertically: one row per coin with an icon cell
// and the coin, and a label cell spanning every row on the first one.
func coinTable(coins []string) *html.Node {
	table := dom.Element(atom.Table)
	for i, coin := range coins {
		tr := dom.Element(atom.Tr)

		if i == 0 {
			label := dom.Element(atom.Td, "rowspan", strconv.Itoa(len(coins)))
			label.AppendChild(dom.Text(CoinLabel))
			tr.AppendChild(label)
		}

		icon := dom.Element(atom.Td)
		icon.AppendChild(dom.Element(atom.I, "class", "bi bi-coin"))
		tr.AppendChild(icon)

		text := dom.Element(atom.Td)
		text.AppendChild(dom.Text(coin))
		tr.AppendChild(text)

		table.AppendChild(tr)
	}
	return table
}

// Len returns the number of cards in the current container
func (r *Renderer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count
}

// WriteHTML writes the container element
func (r *Renderer) WriteHTML(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return html.Render(w, r.container)
}

// HTML returns the container element as markup
func (r *Renderer) HTML() (string, error) {
	var sb strings.Builder
	if err := r.WriteHTML(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Snapshot returns a deep copy of the container for inspection
func (r *Renderer) Snapshot() *html.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return dom.Clone(r.container)
}
