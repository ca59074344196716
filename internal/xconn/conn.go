// Package xconn owns the X server connection: extension setup, the
// compositor selection, atom interning and small request helpers shared by
// the event loop and the reconciliation pass.
package xconn

import (
	"fmt"
	"log/slog"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/composite"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/shape"
	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xproto"
)

// Conn wraps the xgb connection with everything a compositor session needs
// resolved up front.
type Conn struct {
	X      *xgb.Conn
	Screen *xproto.ScreenInfo
	Root   xproto.Window
	Atoms  Atoms
	Seq    SeqTracker

	// Overlay is the composite overlay window, valid after Redirect.
	Overlay xproto.Window

	HasShape bool
	HasRandr bool

	cmWindow xproto.Window
}

// Dial connects to the display (empty means $DISPLAY) and initializes the
// extensions. Composite, Damage and XFixes are required; Shape and RandR
// degrade gracefully.
func Dial(display string) (*Conn, error) {
	x, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	c := &Conn{
		X:      x,
		Screen: xproto.Setup(x).DefaultScreen(x),
	}
	c.Root = c.Screen.Root

	if err := c.initExtensions(); err != nil {
		x.Close()
		return nil, err
	}
	if c.Atoms, err = InternAtoms(x); err != nil {
		x.Close()
		return nil, fmt.Errorf("intern atoms: %w", err)
	}
	return c, nil
}

func (c *Conn) Close() { c.X.Close() }

func (c *Conn) initExtensions() error {
	if err := composite.Init(c.X); err != nil {
		return fmt.Errorf("composite extension: %w", err)
	}
	// NameWindowPixmap needs 0.2, GetOverlayWindow needs 0.3.
	cv, err := composite.QueryVersion(c.X, 0, 4).Reply()
	if err != nil {
		return fmt.Errorf("composite version: %w", err)
	}
	if cv.MajorVersion == 0 && cv.MinorVersion < 3 {
		return fmt.Errorf("composite %d.%d too old, need 0.3", cv.MajorVersion, cv.MinorVersion)
	}

	if err := damage.Init(c.X); err != nil {
		return fmt.Errorf("damage extension: %w", err)
	}
	if _, err := damage.QueryVersion(c.X, 1, 1).Reply(); err != nil {
		return fmt.Errorf("damage version: %w", err)
	}

	if err := xfixes.Init(c.X); err != nil {
		return fmt.Errorf("xfixes extension: %w", err)
	}
	if _, err := xfixes.QueryVersion(c.X, 5, 0).Reply(); err != nil {
		return fmt.Errorf("xfixes version: %w", err)
	}

	if err := shape.Init(c.X); err != nil {
		slog.Warn("shape extension unavailable, shaped windows composite as rectangles", "error", err)
	} else if _, err := shape.QueryVersion(c.X).Reply(); err != nil {
		slog.Warn("shape version query failed", "error", err)
	} else {
		c.HasShape = true
	}

	if err := randr.Init(c.X); err != nil {
		slog.Warn("randr extension unavailable, screen size changes need a restart", "error", err)
	} else if _, err := randr.QueryVersion(c.X, 1, 2).Reply(); err != nil {
		slog.Warn("randr version query failed", "error", err)
	} else {
		c.HasRandr = true
	}

	return nil
}

// AcquireCompositorSelection claims _NET_WM_CM_S<screen> so other
// compositors back off and clients can detect us. Fails if another
// compositor already owns it.
func (c *Conn) AcquireCompositorSelection() error {
	owner, err := xproto.GetSelectionOwner(c.X, c.Atoms.NetWMCMS0).Reply()
	if err != nil {
		return err
	}
	if owner.Owner != xproto.WindowNone {
		return fmt.Errorf("another compositor owns %s (window %#x)", "_NET_WM_CM_S0", owner.Owner)
	}

	wid, err := xproto.NewWindowId(c.X)
	if err != nil {
		return err
	}
	if err := xproto.CreateWindowChecked(c.X, 0,
		wid, c.Root,
		0, 0, 1, 1, 0,
		xproto.WindowClassInputOnly, c.Screen.RootVisual,
		0, []uint32{}).Check(); err != nil {
		return fmt.Errorf("create selection window: %w", err)
	}
	if err := xproto.SetSelectionOwnerChecked(c.X, wid, c.Atoms.NetWMCMS0, xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("set selection owner: %w", err)
	}
	c.cmWindow = wid
	return nil
}

// SelectionWindow returns the window holding the compositor selection, so
// a SelectionClear for it can be recognized.
func (c *Conn) SelectionWindow() xproto.Window { return c.cmWindow }

// Redirect switches the screen to manual redirection and claims the overlay
// window. The overlay's input shape is emptied so clicks fall through to
// the windows below.
func (c *Conn) Redirect() error {
	if err := composite.RedirectSubwindowsChecked(c.X, c.Root, composite.RedirectManual).Check(); err != nil {
		return fmt.Errorf("redirect subwindows: %w", err)
	}
	ov, err := composite.GetOverlayWindow(c.X, c.Root).Reply()
	if err != nil {
		return fmt.Errorf("get overlay: %w", err)
	}
	c.Overlay = ov.OverlayWin

	region, err := xfixes.NewRegionId(c.X)
	if err != nil {
		return err
	}
	xfixes.CreateRegion(c.X, region, []xproto.Rectangle{})
	xfixes.SetWindowShapeRegion(c.X, c.Overlay, shape.SkInput, 0, 0, region)
	xfixes.DestroyRegion(c.X, region)
	return nil
}

// Unredirect releases the overlay and returns windows to automatic
// compositing. Best effort, used on shutdown.
func (c *Conn) Unredirect() {
	if c.Overlay != 0 {
		composite.ReleaseOverlayWindow(c.X, c.Root)
		c.Overlay = 0
	}
	composite.UnredirectSubwindows(c.X, c.Root, composite.RedirectManual)
}

// SelectRootEvents subscribes to the event stream that drives the whole
// session: child structure changes, root property changes and exposure.
func (c *Conn) SelectRootEvents() error {
	const mask = xproto.EventMaskSubstructureNotify |
		xproto.EventMaskStructureNotify |
		xproto.EventMaskPropertyChange |
		xproto.EventMaskExposure
	if err := xproto.ChangeWindowAttributesChecked(c.X, c.Root,
		xproto.CwEventMask, []uint32{mask}).Check(); err != nil {
		return fmt.Errorf("select root events: %w", err)
	}
	if c.HasRandr {
		if err := randr.SelectInputChecked(c.X, c.Root, randr.NotifyMaskScreenChange).Check(); err != nil {
			return fmt.Errorf("select randr events: %w", err)
		}
	}
	return nil
}

// SelectWindowEvents subscribes to property changes and child creation on a
// window we track. Fire and forget; the window may already be gone.
func (c *Conn) SelectWindowEvents(wid xproto.Window) {
	xproto.ChangeWindowAttributes(c.X, wid, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange | xproto.EventMaskSubstructureNotify})
	if c.HasShape {
		shape.SelectInput(c.X, wid, true)
	}
}

// GrabServer stops the server from processing other clients' requests. The
// reconciliation pass runs entirely under this grab so the world cannot
// shift between its round trips.
func (c *Conn) GrabServer() {
	xproto.GrabServer(c.X)
}

// UngrabServer releases the grab and syncs so queued requests are flushed
// before the event loop resumes.
func (c *Conn) UngrabServer() {
	xproto.UngrabServer(c.X)
	c.Sync()
}

// Sync performs an empty round trip, forcing all previously issued requests
// to be processed and their errors delivered.
func (c *Conn) Sync() {
	reply, err := xproto.GetInputFocus(c.X).Reply()
	if err != nil {
		slog.Warn("sync round trip failed", "error", err)
		return
	}
	c.Seq.Observe(reply.Sequence)
}

// ObserveError folds an error's truncated sequence number into the full
// sequence tracker and returns the widened value, attributing the error to
// the request that caused it.
func (c *Conn) ObserveError(err xgb.Error) uint64 {
	return c.Seq.Observe(err.SequenceId())
}
