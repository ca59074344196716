package comp

import (
	"github.com/ItsNotGoodName/x-compd/internal/config"
	"github.com/ItsNotGoodName/x-compd/internal/rules"
	"github.com/ItsNotGoodName/x-compd/internal/xconn"
)

// Bootstrap connects to the display, claims the compositor selection,
// redirects the screen and builds the session around the live connection.
// The returned channel must be fed by ReceiveEvents on the same
// connection.
func Bootstrap(cfg config.Config, m rules.Matcher) (*Session, *xconn.Conn, chan any, error) {
	c, err := xconn.Dial(cfg.Display)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := c.AcquireCompositorSelection(); err != nil {
		c.Close()
		return nil, nil, nil, err
	}
	if err := c.SelectRootEvents(); err != nil {
		c.Close()
		return nil, nil, nil, err
	}
	if err := c.Redirect(); err != nil {
		c.Close()
		return nil, nil, nil, err
	}

	eventC := make(chan any)
	s := NewSession(c, Options{
		Root:      c.Root,
		Selection: c.SelectionWindow(),
		Overlay:   c.Overlay,
		Width:     c.Screen.WidthInPixels,
		Height:    c.Screen.HeightInPixels,
		Atoms:     c.Atoms,
		Config:    cfg,
		Rules:     m,
		Events:    eventC,
	})
	return s, c, eventC, nil
}
