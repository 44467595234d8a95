package cli

import (
	"time"

	"github.com/atotto/clipboard"
)

// Clipboard is the system clipboard, swappable in tests.
type Clipboard interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }
func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }

// copyWithClear puts text on the clipboard and wipes it after d, unless
// something else was copied in the meantime. A zero d never clears.
func copyWithClear(c Clipboard, text string, d time.Duration) error {
	if err := c.WriteAll(text); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	time.AfterFunc(d, func() {
		if cur, err := c.ReadAll(); err == nil && cur == text {
			_ = c.WriteAll("")
		}
	})
	return nil
}
