package panel

// Overlay renders popover content for the panel. The controller owns
// the lifecycle and keeps at most one popover alive: it always calls
// DestroyAll before Show. Implementations that render a real surface
// should focus the first visible form field once the content is in
// place, then invoke onReady.
type Overlay interface {
	// Show displays content in a fresh popover and calls onReady once
	// the content is ready for interaction.
	Show(content string, onReady func())

	// DestroyAll removes every popover the overlay has shown.
	DestroyAll()
}

// Popover is the default Overlay. It holds the current popover's
// content in memory for embedders that draw the panel themselves, and
// calls onReady synchronously from Show.
type Popover struct {
	content string
	visible bool
}

func (p *Popover) Show(content string, onReady func()) {
	p.content = content
	p.visible = true
	if onReady != nil {
		onReady()
	}
}

func (p *Popover) DestroyAll() {
	p.content = ""
	p.visible = false
}

// Visible reports whether a popover is currently shown.
func (p *Popover) Visible() bool { return p.visible }

// Content returns the markup of the current popover, or "" when none
// is shown.
func (p *Popover) Content() string { return p.content }
