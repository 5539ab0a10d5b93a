package event

// MessageElement is one element of an immutable message chain. Concrete
// types are Plain, At, AtAll, Face, Image, Voice, Quote, App, Xml, MetaElem,
// and UnknownElem.
type MessageElement interface {
	elementType() string
	// Equal reports element-wise equality. MessageChain.Equal skips Meta
	// elements before comparing.
	Equal(other MessageElement) bool
}

// MessageChain is an ordered, immutable sequence of MessageElement.
type MessageChain []MessageElement

// Has reports whether the chain contains an element of the same concrete
// type as sample (sample's field values are ignored).
func (c MessageChain) Has(sample MessageElement) bool {
	want := sample.elementType()
	for _, el := range c {
		if el.elementType() == want {
			return true
		}
	}
	return false
}

// ElementType returns the bucket name used by MessageTypeNode routing
// (spec §4.2): "plain", "at", "at_all", "face", "image", "voice", "quote",
// "app", "xml", "meta", or "unknown".
func ElementType(el MessageElement) string { return el.elementType() }

// PlainText concatenates all Plain element text in the chain.
func (c MessageChain) PlainText() string {
	var out string
	for _, el := range c {
		if p, ok := el.(Plain); ok {
			out += p.Text
		}
	}
	return out
}

// Equal compares two chains element-wise, ignoring Meta elements on both
// sides (per the data-model invariant: "MessageChain equality ignoring
// Meta elements").
func (c MessageChain) Equal(other MessageChain) bool {
	a := stripMeta(c)
	b := stripMeta(other)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func stripMeta(c MessageChain) MessageChain {
	out := make(MessageChain, 0, len(c))
	for _, el := range c {
		if _, ok := el.(MetaElem); ok {
			continue
		}
		out = append(out, el)
	}
	return out
}

// Plain is a run of plain text.
type Plain struct{ Text string }

func (Plain) elementType() string { return "plain" }
func (p Plain) Equal(other MessageElement) bool {
	o, ok := other.(Plain)
	return ok && o.Text == p.Text
}

// At mentions a single target QQ.
type At struct{ Target int64 }

func (At) elementType() string { return "at" }
func (a At) Equal(other MessageElement) bool {
	o, ok := other.(At)
	return ok && o.Target == a.Target
}

// AtAll mentions everyone in the group.
type AtAll struct{}

func (AtAll) elementType() string          { return "at_all" }
func (AtAll) Equal(other MessageElement) bool { _, ok := other.(AtAll); return ok }

// Face is a built-in emoji by id.
type Face struct{ ID int }

func (Face) elementType() string { return "face" }
func (f Face) Equal(other MessageElement) bool {
	o, ok := other.(Face)
	return ok && o.ID == f.ID
}

// Image equality holds if any of Hash, URL, or Content matches, per the
// data-model invariant.
type Image struct {
	Hash    string
	URL     string
	Content []byte
}

func (Image) elementType() string { return "image" }
func (img Image) Equal(other MessageElement) bool {
	o, ok := other.(Image)
	if !ok {
		return false
	}
	if img.Hash != "" && img.Hash == o.Hash {
		return true
	}
	if img.URL != "" && img.URL == o.URL {
		return true
	}
	if len(img.Content) != 0 && string(img.Content) == string(o.Content) {
		return true
	}
	return false
}

// Voice has the same any-of equality semantics as Image.
type Voice struct {
	Hash    string
	URL     string
	Content []byte
}

func (Voice) elementType() string { return "voice" }
func (v Voice) Equal(other MessageElement) bool {
	o, ok := other.(Voice)
	if !ok {
		return false
	}
	if v.Hash != "" && v.Hash == o.Hash {
		return true
	}
	if v.URL != "" && v.URL == o.URL {
		return true
	}
	if len(v.Content) != 0 && string(v.Content) == string(o.Content) {
		return true
	}
	return false
}

// Quote references an earlier message by id, with a copy of its chain.
type Quote struct {
	MessageID int64
	Origin    MessageChain
	SourceQQ  int64
}

func (Quote) elementType() string { return "quote" }
func (q Quote) Equal(other MessageElement) bool {
	o, ok := other.(Quote)
	return ok && o.MessageID == q.MessageID
}

// App is a platform-rendered card (e.g. a share card) carried as raw JSON.
type App struct{ Content string }

func (App) elementType() string { return "app" }
func (a App) Equal(other MessageElement) bool {
	o, ok := other.(App)
	return ok && o.Content == a.Content
}

// Xml is a legacy XML card payload.
type Xml struct{ Content string }

func (Xml) elementType() string { return "xml" }
func (x Xml) Equal(other MessageElement) bool {
	o, ok := other.(Xml)
	return ok && o.Content == x.Content
}

// MetaElem carries adapter-private metadata and is excluded from
// MessageChain equality comparisons.
type MetaElem struct{ Data map[string]any }

func (MetaElem) elementType() string             { return "meta" }
func (MetaElem) Equal(other MessageElement) bool { _, ok := other.(MetaElem); return ok }

// UnknownElem is a passthrough for elements the adapter didn't recognize.
type UnknownElem struct{ Raw string }

func (UnknownElem) elementType() string { return "unknown" }
func (u UnknownElem) Equal(other MessageElement) bool {
	o, ok := other.(UnknownElem)
	return ok && o.Raw == u.Raw
}
