// Package tray provides a system tray menu for the viewer.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/visor/internal/input"
)

// Source is the input.Event source for tray actions.
const Source = "tray"

// Tray represents the system tray application.
type Tray struct {
	events chan input.Event
	onOpen func()
	onQuit func()
	head   bool
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuSelection *systray.MenuItem
	menuHead      *systray.MenuItem
}

// New creates a new Tray. headVisible is the initial head mesh state.
func New(headVisible bool) *Tray {
	return &Tray{
		events: make(chan input.Event, 8),
		head:   headVisible,
	}
}

// Events delivers the actions chosen from the menu.
func (t *Tray) Events() <-chan input.Event {
	return t.events
}

// OnOpen sets the callback function to be called when "Open viewer..." is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Visor")
	systray.SetTooltip("Visor virtual helmet")

	t.mu.Lock()
	t.menuSelection = systray.AddMenuItem("Helmet: -", "Current helmet and environment")
	t.menuSelection.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuNextEnv := systray.AddMenuItem("Next environment", "Show the next environment")
	menuPrevEnv := systray.AddMenuItem("Previous environment", "Show the previous environment")
	menuNextModel := systray.AddMenuItem("Next helmet", "Show the next helmet")
	menuPrevModel := systray.AddMenuItem("Previous helmet", "Show the previous helmet")
	systray.AddSeparator()

	t.mu.Lock()
	t.menuHead = systray.AddMenuItemCheckbox("Show head", "Show the head mesh under the helmet", t.head)
	menuHead := t.menuHead
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open viewer...", "Open the viewer in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Visor")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-menuNextEnv.ClickedCh:
				t.handleAction(input.ActionNextEnvironment)
			case <-menuPrevEnv.ClickedCh:
				t.handleAction(input.ActionPreviousEnvironment)
			case <-menuNextModel.ClickedCh:
				t.handleAction(input.ActionNextModel)
			case <-menuPrevModel.ClickedCh:
				t.handleAction(input.ActionPreviousModel)
			case <-menuHead.ClickedCh:
				t.handleHead()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleAction queues a menu action, dropping it if the app is not keeping up.
func (t *Tray) handleAction(a input.Action) {
	select {
	case t.events <- input.Event{Action: a, Source: Source}:
	default:
	}
}

// handleHead flips the head checkbox and queues the toggle.
func (t *Tray) handleHead() {
	t.mu.Lock()
	t.head = !t.head
	if t.menuHead != nil {
		if t.head {
			t.menuHead.Check()
		} else {
			t.menuHead.Uncheck()
		}
	}
	t.mu.Unlock()

	t.handleAction(input.ActionToggleHead)
}

// handleOpen handles the open viewer menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetSelection updates the selection shown in the menu.
func (t *Tray) SetSelection(model, environment string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuSelection != nil {
		t.menuSelection.SetTitle(fmt.Sprintf("Helmet: %s in %s", model, environment))
	}
}

// HeadVisible returns the head checkbox state.
func (t *Tray) HeadVisible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.head
}
